package jobs

import (
	"context"
	"errors"
	"log"
	"sync"
)

// ErrShuttingDown is returned by Runner.Go after Shutdown has begun.
var ErrShuttingDown = errors.New("job runner is shutting down")

// Runner executes detached job goroutines and lets callers wait for
// them. Each task gets a context that is cancelled only when a
// shutdown grace period runs out.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

func NewRunner() *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{ctx: ctx, cancel: cancel}
}

// Go starts fn in its own goroutine.
func (r *Runner) Go(fn func(ctx context.Context)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrShuttingDown
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.ctx)
	}()
	return nil
}

// Wait blocks until every started task has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Shutdown stops accepting tasks and waits for running ones. If ctx
// expires first, running tasks are cancelled and Shutdown still waits
// for them to return before reporting ctx's error.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		log.Println("JobRunner: grace period over, cancelling running jobs")
		r.cancel()
		<-done
		return ctx.Err()
	}
}
