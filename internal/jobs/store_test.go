package jobs

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb, time.Hour), mr
}

func TestStoreCreateAndGet(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)

	if err := store.Create(ctx, Accepted("job-1", 42, t0)); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, Accepted("job-1", 42, t0)); !errors.Is(err, ErrExists) {
		t.Errorf("second Create err = %v, want ErrExists", err)
	}
	if ttl := mr.TTL("batyr:job:job-1"); ttl != time.Hour {
		t.Errorf("TTL = %v, want 1h", ttl)
	}

	st, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.State != StateAccepted || st.OwnerID != 42 {
		t.Errorf("Get = %+v", st)
	}

	if _, err := store.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) err = %v, want ErrNotFound", err)
	}
}

func TestStoreExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	store.Create(ctx, Accepted("job-1", 42, time.Now()))

	mr.FastForward(time.Hour + time.Second)
	if _, err := store.Get(ctx, "job-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after TTL err = %v, want ErrNotFound", err)
	}
}

func TestStoreRefusesToOverwriteTerminal(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	job := Accepted("job-1", 42, t0)
	store.Create(ctx, job)

	done := job.Completed("https://img/1.png", t0.Add(time.Minute))
	if err := store.Update(ctx, done); err != nil {
		t.Fatalf("Update(completed): %v", err)
	}
	if err := store.Update(ctx, job.Failed("late", t0.Add(2*time.Minute))); !errors.Is(err, ErrTerminal) {
		t.Fatalf("Update after terminal err = %v, want ErrTerminal", err)
	}

	first, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := store.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("terminal reads differ:\n%+v\n%+v", first, second)
	}
	if first.State != StateCompleted || first.ResultURL != "https://img/1.png" {
		t.Errorf("stored = %+v, want the completed document", first)
	}
}
