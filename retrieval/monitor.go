package retrieval

import "github.com/poiesic/quarry/core"

// RankMonitor provides hooks to observe retrieval.
// Implement this interface to track intermediate steps and results.
type RankMonitor interface {
	Start(need string)
	AfterPlan(queries []core.DBQuery)
	AfterCandidates(query string, candidates []core.RetrievedDocument)
	AfterRerank(query string, kept []core.RetrievedDocument)
	Finish(results []core.RetrievedDocument)
}

// noopMonitor is a no-op implementation of RankMonitor
type noopMonitor struct{}

var _ RankMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                       {}
func (n *noopMonitor) AfterPlan(_ []core.DBQuery)                           {}
func (n *noopMonitor) AfterCandidates(_ string, _ []core.RetrievedDocument) {}
func (n *noopMonitor) AfterRerank(_ string, _ []core.RetrievedDocument)     {}
func (n *noopMonitor) Finish(_ []core.RetrievedDocument)                    {}
