package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/batyrai/backend/internal/clock"
	"github.com/batyrai/backend/internal/imaging"
	"github.com/batyrai/backend/internal/piapi"
)

// Messages for failures that happen before polling starts. Details are
// logged; the job document only gets the user-facing text.
const (
	MsgPhotoUnreadable   = "Could not read the uploaded photo. Please try another image."
	MsgSubmissionFailed  = "Face swap service is unavailable. Please try again later."
	MsgInternal          = "Internal error while processing the job."
	MsgServerRestarting  = "Server is restarting, please try again."
	terminalWriteTimeout = 5 * time.Second
)

// Compute is the external face-swap service.
type Compute interface {
	SubmitFaceSwap(ctx context.Context, targetImage, swapImage string) (string, error)
	GetTask(ctx context.Context, taskID string) (*piapi.Task, error)
}

// ReferencePicker supplies the batyr portrait a face is swapped onto.
type ReferencePicker interface {
	Random() (string, error)
}

// Notifier is told about completed jobs. Errors are logged only.
type Notifier interface {
	NotifyCompleted(ctx context.Context, ownerID int64, resultURL string) error
}

// StatusStore persists job documents.
type StatusStore interface {
	Update(ctx context.Context, st Status) error
	Get(ctx context.Context, jobID string) (*Status, error)
}

type Options struct {
	PollInterval time.Duration
	PollBudget   time.Duration
	MaxImageSize int
}

// Orchestrator drives each job from preparing to a terminal state.
// Every job runs in its own goroutine on the Runner and is the only
// writer of its document.
type Orchestrator struct {
	store    StatusStore
	compute  Compute
	refs     ReferencePicker
	notifier Notifier
	clock    clock.Clock
	runner   *Runner
	opts     Options

	prepare func(photo []byte) (string, error)
}

func NewOrchestrator(store StatusStore, compute Compute, refs ReferencePicker, notifier Notifier,
	clk clock.Clock, runner *Runner, opts Options) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.PollBudget <= 0 {
		opts.PollBudget = 120 * time.Second
	}
	if opts.MaxImageSize <= 0 {
		opts.MaxImageSize = 1024
	}

	o := &Orchestrator{
		store:    store,
		compute:  compute,
		refs:     refs,
		notifier: notifier,
		clock:    clk,
		runner:   runner,
		opts:     opts,
	}
	o.prepare = o.downscale
	return o
}

func (o *Orchestrator) downscale(photo []byte) (string, error) {
	return imaging.Downscale(photo, o.opts.MaxImageSize)
}

// Submit starts processing an accepted job in the background and
// returns immediately.
func (o *Orchestrator) Submit(job Status, photo []byte) error {
	return o.runner.Go(func(ctx context.Context) {
		o.Run(ctx, job, photo)
	})
}

// GetStatus reads the current document of a job.
func (o *Orchestrator) GetStatus(ctx context.Context, jobID string) (*Status, error) {
	return o.store.Get(ctx, jobID)
}

// Run processes one job synchronously. It never panics and always ends
// with a terminal document unless ctx is cancelled first.
func (o *Orchestrator) Run(ctx context.Context, job Status, photo []byte) {
	current := job
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Job: %s] Panic: %v", job.JobID, r)
			o.finish(current.Failed(MsgInternal, o.clock.Now()))
		}
	}()

	current = current.Preparing(o.clock.Now())
	if !o.write(ctx, current) {
		return
	}

	face, err := o.prepare(photo)
	if err != nil {
		log.Printf("[Job: %s] Failed to prepare photo: %v", job.JobID, err)
		o.finish(current.Failed(MsgPhotoUnreadable, o.clock.Now()))
		return
	}

	portrait, err := o.refs.Random()
	if err != nil {
		log.Printf("[Job: %s] No reference portrait: %v", job.JobID, err)
		o.finish(current.Failed(MsgInternal, o.clock.Now()))
		return
	}

	current = current.Submitting(o.clock.Now())
	if !o.write(ctx, current) {
		return
	}

	// The user's face goes onto the batyr portrait.
	taskID, err := o.compute.SubmitFaceSwap(ctx, portrait, face)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.Printf("[Job: %s] Submission failed: %v", job.JobID, err)
		o.finish(current.Failed(MsgSubmissionFailed, o.clock.Now()))
		return
	}
	if taskID == "" {
		log.Printf("[Job: %s] Submission returned no task id", job.JobID)
		o.finish(current.Failed(MsgTaskIDMissing, o.clock.Now()))
		return
	}
	log.Printf("[Job: %s] Submitted as task %s", job.JobID, taskID)

	current = current.Polling(taskID, "", o.clock.Now())
	if !o.write(ctx, current) {
		return
	}
	o.poll(ctx, current, taskID)
}

func (o *Orchestrator) poll(ctx context.Context, current Status, taskID string) {
	start := o.clock.Now()
	lastVendorStatus := ""

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Job: %s] Cancelled while polling", current.JobID)
			return
		case <-o.clock.After(o.opts.PollInterval):
		}

		var obs Observation
		task, err := o.compute.GetTask(ctx, taskID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[Job: %s] Poll error (will retry): %v", current.JobID, err)
			obs.Err = err
		} else {
			obs.Status = task.Status
			obs.ResultURL = task.ImageURL
			obs.Error = task.Error
		}

		now := o.clock.Now()
		d := Decide(now.Sub(start), o.opts.PollBudget, obs)
		switch d.Action {
		case ActionContinue:
			if d.VendorStatus != "" && d.VendorStatus != lastVendorStatus {
				lastVendorStatus = d.VendorStatus
				current = current.Polling(taskID, d.VendorStatus, now)
				if !o.write(ctx, current) {
					return
				}
			}
		case ActionComplete:
			log.Printf("[Job: %s] Completed: %s", current.JobID, d.ResultURL)
			if o.finish(current.Completed(d.ResultURL, now)) {
				o.notify(ctx, current, d.ResultURL)
			}
			return
		case ActionFail:
			log.Printf("[Job: %s] Failed: %s", current.JobID, d.Error)
			o.finish(current.Failed(d.Error, now))
			return
		case ActionTimeout:
			log.Printf("[Job: %s] Timed out after %s", current.JobID, now.Sub(start))
			o.finish(current.TimedOut(d.Error, now))
			return
		}
	}
}

// write stores a non-terminal document. It returns false when the job
// must stop: ctx is done or the document is already terminal.
func (o *Orchestrator) write(ctx context.Context, st Status) bool {
	if ctx.Err() != nil {
		return false
	}
	err := o.store.Update(ctx, st)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrTerminal):
		log.Printf("[Job: %s] Already terminal, stopping", st.JobID)
		return false
	case ctx.Err() != nil:
		return false
	default:
		// The next write may succeed; a lost intermediate state is not fatal.
		log.Printf("[Job: %s] Failed to write %s state: %v", st.JobID, st.State, err)
		return true
	}
}

// finish stores a terminal document. It uses its own context so the
// outcome is recorded even while the request that started the job is
// long gone.
func (o *Orchestrator) finish(st Status) bool {
	ctx, cancel := context.WithTimeout(context.Background(), terminalWriteTimeout)
	defer cancel()

	if err := o.store.Update(ctx, st); err != nil {
		log.Printf("[Job: %s] Failed to write %s state: %v", st.JobID, st.State, err)
		return false
	}
	return true
}

func (o *Orchestrator) notify(ctx context.Context, st Status, resultURL string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.NotifyCompleted(ctx, st.OwnerID, resultURL); err != nil {
		log.Printf("[Job: %s] Notification to user %d failed: %v", st.JobID, st.OwnerID, err)
	}
}

func (o Options) String() string {
	return fmt.Sprintf("interval=%s budget=%s max_size=%d", o.PollInterval, o.PollBudget, o.MaxImageSize)
}
