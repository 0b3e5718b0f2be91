package orchestrator

import "fmt"

// State is a step of the session state machine.
type State int

const (
	StateAnalyze State = iota + 1
	StatePlan
	StateSearch
	StateExtract
	StateRetrieve
	StateGenerate
	StateEvaluate
	StateTerminate
)

var stateNames = map[State]string{
	StateAnalyze:   "analyze",
	StatePlan:      "plan",
	StateSearch:    "search",
	StateExtract:   "extract",
	StateRetrieve:  "retrieve",
	StateGenerate:  "generate",
	StateEvaluate:  "evaluate",
	StateTerminate: "terminate",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Status is how a session ended.
type Status int

const (
	// StatusRunning is the status of a session that has not terminated.
	StatusRunning Status = iota
	// StatusFinished means the oracle accepted an answer.
	StatusFinished
	// StatusBudgetExhausted means the iteration or crawl depth ceiling was passed.
	StatusBudgetExhausted
	// StatusRefused means the question was judged harmful. It is not retryable.
	StatusRefused
	// StatusFailed means a fatal error stopped the session.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusBudgetExhausted:
		return "budget_exhausted"
	case StatusRefused:
		return "refused"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}
