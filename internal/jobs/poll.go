package jobs

import (
	"fmt"
	"strings"
	"time"
)

// Messages written to failed and timed out job documents.
const (
	MsgTaskIDMissing        = "external task id missing"
	MsgUnrecognizedStatus   = "unrecognized external status"
	MsgFaceNotFound         = "No face was found in the photo. Please upload a clear, front-facing photo."
	MsgMissingResult        = "external task completed without a result"
	msgUnknownVendorFailure = "unknown face swap error"
)

// Action is what the polling loop does after one observation.
type Action int

const (
	ActionContinue Action = iota
	ActionComplete
	ActionFail
	ActionTimeout
)

func (a Action) String() string {
	switch a {
	case ActionContinue:
		return "continue"
	case ActionComplete:
		return "complete"
	case ActionFail:
		return "fail"
	case ActionTimeout:
		return "timeout"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Observation is the outcome of a single poll of the external task.
// Err is set when the poll itself failed (network, non-200), in which
// case the other fields are empty.
type Observation struct {
	Status    string
	ResultURL string
	Error     string
	Err       error
}

// Decision is the next step of the polling loop.
type Decision struct {
	Action       Action
	VendorStatus string
	ResultURL    string
	Error        string
}

// Decide maps the elapsed time and the latest observation to the next
// step. A terminal external status wins over the budget; a failed poll
// is never fatal on its own.
func Decide(elapsed, budget time.Duration, obs Observation) Decision {
	if obs.Err == nil {
		switch strings.ToLower(strings.TrimSpace(obs.Status)) {
		case "completed":
			if obs.ResultURL == "" {
				return Decision{Action: ActionFail, Error: MsgMissingResult}
			}
			return Decision{Action: ActionComplete, ResultURL: obs.ResultURL}
		case "failed":
			return Decision{Action: ActionFail, Error: vendorErrorMessage(obs.Error)}
		case "processing", "pending", "staged":
			if elapsed >= budget {
				return Decision{Action: ActionTimeout, Error: timeoutMessage(budget)}
			}
			return Decision{Action: ActionContinue, VendorStatus: obs.Status}
		default:
			return Decision{Action: ActionFail, Error: MsgUnrecognizedStatus}
		}
	}

	if elapsed >= budget {
		return Decision{Action: ActionTimeout, Error: timeoutMessage(budget)}
	}
	return Decision{Action: ActionContinue}
}

var knownVendorErrors = []struct {
	substr  string
	message string
}{
	{"face not found", MsgFaceNotFound},
	{"no face", MsgFaceNotFound},
}

// vendorErrorMessage turns a vendor failure into user-facing text.
func vendorErrorMessage(raw string) string {
	lower := strings.ToLower(raw)
	for _, known := range knownVendorErrors {
		if strings.Contains(lower, known.substr) {
			return known.message
		}
	}
	if strings.TrimSpace(raw) == "" {
		return msgUnknownVendorFailure
	}
	return raw
}

func timeoutMessage(budget time.Duration) string {
	return fmt.Sprintf("Face swap did not finish within %s", budget)
}
