package stage

import "ignite/internal/faults"

// State is the lifecycle position of a stateful component.
type State string

const (
	NotStarted State = "not_started"
	InProgress State = "in_progress"
	Completed  State = "completed"
	Failed     State = "failed"
)

// Status pairs a State with the error that caused Failed.
type Status struct {
	State State
	Err   *faults.Error
}

func StatusNotStarted() Status { return Status{State: NotStarted} }

func StatusInProgress() Status { return Status{State: InProgress} }

func StatusCompleted() Status { return Status{State: Completed} }

func StatusFailed(err *faults.Error) Status { return Status{State: Failed, Err: err} }

// Message renders the status for display.
func (s Status) Message() string {
	switch s.State {
	case InProgress:
		return "Initializing…"
	case Completed:
		return "Ready"
	case Failed:
		if s.Err == nil {
			return "Failed - unknown error"
		}
		return "Failed - " + s.Err.Message
	default:
		return "Not Started"
	}
}
