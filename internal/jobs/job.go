// Package jobs runs face-swap jobs asynchronously and tracks their
// status documents in Redis.
package jobs

import "time"

// State is the lifecycle position of a job.
type State string

const (
	StateAccepted   State = "accepted"
	StatePreparing  State = "preparing"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateTimeout    State = "timeout"
)

// Terminal reports whether no further transitions may follow s.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateTimeout:
		return true
	}
	return false
}

// Status is the persisted job document returned by the status endpoint.
//
// Values are built with Accepted and then advanced with the transition
// methods, each of which carries over the job identity and sets only
// the payload that belongs to the new state.
type Status struct {
	State          State     `json:"status"`
	JobID          string    `json:"job_id"`
	OwnerID        int64     `json:"owner_id"`
	Message        string    `json:"message,omitempty"`
	ExternalTaskID string    `json:"piapi_task_id,omitempty"`
	PiAPIStatus    string    `json:"piapi_status,omitempty"`
	ResultURL      string    `json:"result_url,omitempty"`
	Error          string    `json:"error,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Accepted is the document written synchronously when a job is created.
func Accepted(jobID string, ownerID int64, now time.Time) Status {
	return Status{
		State:     StateAccepted,
		JobID:     jobID,
		OwnerID:   ownerID,
		Message:   "Job accepted for processing.",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func (s Status) next(state State, now time.Time) Status {
	return Status{
		State:          state,
		JobID:          s.JobID,
		OwnerID:        s.OwnerID,
		ExternalTaskID: s.ExternalTaskID,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      now,
	}
}

func (s Status) Preparing(now time.Time) Status {
	n := s.next(StatePreparing, now)
	n.Message = "Resizing photo..."
	return n
}

func (s Status) Submitting(now time.Time) Status {
	n := s.next(StateSubmitting, now)
	n.Message = "Sending photo to the face swap service..."
	return n
}

// Polling records the vendor task id and its raw sub-status.
func (s Status) Polling(taskID, vendorStatus string, now time.Time) Status {
	n := s.next(StatePolling, now)
	n.ExternalTaskID = taskID
	n.PiAPIStatus = vendorStatus
	n.Message = "Generating portrait..."
	return n
}

func (s Status) Completed(resultURL string, now time.Time) Status {
	n := s.next(StateCompleted, now)
	n.ResultURL = resultURL
	return n
}

func (s Status) Failed(errMsg string, now time.Time) Status {
	n := s.next(StateFailed, now)
	n.Error = errMsg
	return n
}

func (s Status) TimedOut(errMsg string, now time.Time) Status {
	n := s.next(StateTimeout, now)
	n.Error = errMsg
	return n
}
