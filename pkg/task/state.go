package task

// State identifies where a task currently sits in its lifecycle. States only
// move forward; a task never returns to an earlier state.
type State int

const (
	StateInitialized State = iota
	StatePending
	StateEvaluatingConditions
	StateReady
	StateExecuting
	StateFinishing
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StatePending:
		return "pending"
	case StateEvaluatingConditions:
		return "evaluatingConditions"
	case StateReady:
		return "ready"
	case StateExecuting:
		return "executing"
	case StateFinishing:
		return "finishing"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// canTransition reports whether moving between the two states is allowed.
// The table is deliberately closed: anything not listed is a contract
// violation and gets logged and refused by the task.
func canTransition(from, to State) bool {
	switch from {
	case StateInitialized:
		return to == StatePending
	case StatePending:
		return to == StateEvaluatingConditions || to == StateFinishing
	case StateEvaluatingConditions:
		return to == StateReady
	case StateReady:
		return to == StateExecuting || to == StateFinishing
	case StateExecuting:
		return to == StateFinishing
	case StateFinishing:
		return to == StateFinished
	}
	return false
}
