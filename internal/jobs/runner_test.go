package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunnerWaitsForTasks(t *testing.T) {
	r := NewRunner()
	var n int32
	for i := 0; i < 5; i++ {
		if err := r.Go(func(context.Context) { atomic.AddInt32(&n, 1) }); err != nil {
			t.Fatalf("Go: %v", err)
		}
	}
	r.Wait()
	if got := atomic.LoadInt32(&n); got != 5 {
		t.Errorf("ran %d tasks, want 5", got)
	}
}

func TestRunnerShutdownRejectsNewTasks(t *testing.T) {
	r := NewRunner()
	if err := r.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err := r.Go(func(context.Context) {}); !errors.Is(err, ErrShuttingDown) {
		t.Errorf("Go after Shutdown err = %v, want ErrShuttingDown", err)
	}
}

func TestRunnerShutdownCancelsAfterGrace(t *testing.T) {
	r := NewRunner()
	cancelled := make(chan struct{})
	r.Go(func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown err = %v, want DeadlineExceeded", err)
	}

	select {
	case <-cancelled:
	default:
		t.Error("task context was not cancelled before Shutdown returned")
	}
}
