package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/telegram"
)

func setupGate(t *testing.T, limit int, adminID int64) (*QuotaGate, *UserRegistry, *clock.FakeClock) {
	t.Helper()
	db := openTestDB(t)
	clk := clock.Fake(time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC))
	return NewQuotaGate(db, clk, time.UTC, limit, adminID), NewUserRegistry(db, clk, time.UTC), clk
}

func TestTryConsumeExactlyLimitPerDay(t *testing.T) {
	for _, limit := range []int{1, 3} {
		gate, reg, _ := setupGate(t, limit, 0)
		ctx := context.Background()
		if err := reg.Ensure(ctx, &telegram.Principal{ID: 42}); err != nil {
			t.Fatalf("Ensure: %v", err)
		}

		for i := 1; i <= limit; i++ {
			d, err := gate.TryConsume(ctx, 42)
			if err != nil {
				t.Fatalf("limit %d: TryConsume #%d: %v", limit, i, err)
			}
			if !d.Allowed || d.Remaining != limit-i {
				t.Errorf("limit %d: TryConsume #%d = %+v, want allowed with %d remaining", limit, i, d, limit-i)
			}
		}

		d, err := gate.TryConsume(ctx, 42)
		if err != nil {
			t.Fatalf("limit %d: extra TryConsume: %v", limit, err)
		}
		if d.Allowed || d.Remaining != 0 {
			t.Errorf("limit %d: extra TryConsume = %+v, want denied", limit, d)
		}
	}
}

func TestTryConsumeResetsOnNewDay(t *testing.T) {
	gate, reg, clk := setupGate(t, 1, 0)
	ctx := context.Background()
	reg.Ensure(ctx, &telegram.Principal{ID: 42})

	if d, _ := gate.TryConsume(ctx, 42); !d.Allowed {
		t.Fatal("first consume denied")
	}
	if d, _ := gate.TryConsume(ctx, 42); d.Allowed {
		t.Fatal("second consume on same day allowed")
	}

	clk.Set(time.Date(2026, 3, 9, 0, 0, 1, 0, time.UTC))
	d, err := gate.TryConsume(ctx, 42)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if !d.Allowed || d.Remaining != 0 {
		t.Errorf("next-day consume = %+v, want allowed with 0 remaining", d)
	}

	rec := usageRecord(t, gate.db, 42)
	if rec.UsageCount != 1 || rec.LastUsageDate != "2026-03-09" {
		t.Errorf("record = %+v, want usage 1 on 2026-03-09", rec)
	}
}

func TestTryConsumeUsesConfiguredTimezone(t *testing.T) {
	db := openTestDB(t)
	almaty := time.FixedZone("ALMT", 5*60*60)
	clk := clock.Fake(time.Date(2026, 3, 8, 20, 0, 0, 0, time.UTC)) // 01:00 on the 9th in Almaty
	gate := NewQuotaGate(db, clk, almaty, 1, 0)
	reg := NewUserRegistry(db, clk, almaty)
	ctx := context.Background()
	reg.Ensure(ctx, &telegram.Principal{ID: 1})

	gate.TryConsume(ctx, 1)
	rec := usageRecord(t, db, 1)
	if rec.LastUsageDate != "2026-03-09" {
		t.Errorf("LastUsageDate = %q, want 2026-03-09", rec.LastUsageDate)
	}
}

func TestTryConsumeAdminBypass(t *testing.T) {
	gate, _, _ := setupGate(t, 1, 999)
	ctx := context.Background()

	// The admin needs no registry entry and is never limited.
	for i := 0; i < 5; i++ {
		d, err := gate.TryConsume(ctx, 999)
		if err != nil {
			t.Fatalf("TryConsume: %v", err)
		}
		if !d.Allowed || d.Remaining != Unlimited {
			t.Fatalf("admin consume #%d = %+v", i, d)
		}
	}
}

func TestTryConsumeUnregistered(t *testing.T) {
	gate, _, _ := setupGate(t, 1, 0)
	_, err := gate.TryConsume(context.Background(), 404)
	if !errors.Is(err, ErrPrincipalNotRegistered) {
		t.Fatalf("err = %v, want ErrPrincipalNotRegistered", err)
	}
}

func TestTryConsumeZeroLimit(t *testing.T) {
	gate, reg, _ := setupGate(t, 0, 0)
	ctx := context.Background()
	reg.Ensure(ctx, &telegram.Principal{ID: 1})

	d, err := gate.TryConsume(ctx, 1)
	if err != nil {
		t.Fatalf("TryConsume: %v", err)
	}
	if d.Allowed {
		t.Error("zero limit allowed a consume")
	}
}

func TestTryConsumeConcurrent(t *testing.T) {
	gate, reg, _ := setupGate(t, 2, 0)
	ctx := context.Background()
	reg.Ensure(ctx, &telegram.Principal{ID: 42})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := gate.TryConsume(ctx, 42)
			if err != nil {
				t.Errorf("TryConsume: %v", err)
				return
			}
			if d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 2 {
		t.Errorf("allowed = %d, want exactly 2", allowed)
	}
}

func TestDeniedMessage(t *testing.T) {
	gate, _, _ := setupGate(t, 1, 0)
	if got := gate.DeniedMessage(); got != "Daily limit (1) reached. Come back tomorrow!" {
		t.Errorf("DeniedMessage = %q", got)
	}
}
