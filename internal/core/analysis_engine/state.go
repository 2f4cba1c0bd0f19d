package analysis_engine

import "fmt"

// State is a step of the analysis state machine. The ordinal of each
// non-terminal state is the step number reported to the client.
type State int

const (
	StateInit State = iota
	StateCreditCheck
	StateReading
	StateRetrieving
	StateGenerating
	StatePersisting
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateCreditCheck:
		return "credit_check"
	case StateReading:
		return "reading"
	case StateRetrieving:
		return "retrieving"
	case StateGenerating:
		return "generating"
	case StatePersisting:
		return "persisting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// StageError records the state in which an analysis failed.
type StageError struct {
	State State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.State, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func fail(s State, err error) error {
	return &StageError{State: s, Err: err}
}
