package orchestrator

import "github.com/poiesic/quarry/core"

// Monitor provides hooks to observe a session.
// Callbacks run on the session goroutine and must not retain the session.
type Monitor interface {
	StateEntered(s *Session, state State)
	RoundCompleted(s *Session, eval *core.EvaluationResult)
	Finished(s *Session)
}

// noopMonitor is a no-op implementation of Monitor
type noopMonitor struct{}

var _ Monitor = (*noopMonitor)(nil)

func (n *noopMonitor) StateEntered(_ *Session, _ State)                    {}
func (n *noopMonitor) RoundCompleted(_ *Session, _ *core.EvaluationResult) {}
func (n *noopMonitor) Finished(_ *Session)                                 {}
