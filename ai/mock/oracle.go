package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
)

// MockOracle is a test double for ai.Oracle.
// Each method delegates to its Func field when set and otherwise returns a
// simple deterministic judgment that lets a session finish in one round.
type MockOracle struct {
	AnalyzeQueryFunc      func(ctx context.Context, query string) (*core.QueryAnalysis, error)
	RefineQueryFunc       func(ctx context.Context, history []core.Message) (string, error)
	PlanSearchQueriesFunc func(ctx context.Context, query string, prior []core.SearchQuery, rationale string) ([]core.SearchQuery, error)
	GenerateAnswerFunc    func(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.Answer, error)
	EvaluateAnswerFunc    func(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.EvaluationResult, error)
	ExtractLinksFunc      func(ctx context.Context, evidence []core.RetrievedDocument, recent []core.Message) ([]string, error)
	PlanDBQueriesFunc     func(ctx context.Context, need string) ([]core.DBQuery, error)

	mu    sync.Mutex
	calls map[string]int
}

var _ ai.Oracle = (*MockOracle)(nil)

// NewMockOracle creates a mock oracle with default behavior.
func NewMockOracle() *MockOracle {
	return &MockOracle{calls: make(map[string]int)}
}

func (m *MockOracle) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[method]++
}

// CallCount returns how many times the named method was called.
func (m *MockOracle) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

// TotalCalls returns the number of calls across all methods.
func (m *MockOracle) TotalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.calls {
		total += n
	}
	return total
}

// Reset clears the call counts. Func fields are left in place.
func (m *MockOracle) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = make(map[string]int)
}

// AnalyzeQuery defaults to capitalized words as entities and longer words as keywords.
func (m *MockOracle) AnalyzeQuery(ctx context.Context, query string) (*core.QueryAnalysis, error) {
	m.record("AnalyzeQuery")
	if m.AnalyzeQueryFunc != nil {
		return m.AnalyzeQueryFunc(ctx, query)
	}

	analysis := &core.QueryAnalysis{Complexity: core.ComplexitySimple}
	for _, word := range strings.Fields(query) {
		word = strings.TrimFunc(word, unicode.IsPunct)
		if word == "" {
			continue
		}
		if unicode.IsUpper([]rune(word)[0]) {
			analysis.Entities = append(analysis.Entities, word)
		} else if len(word) > 3 {
			analysis.Keywords = append(analysis.Keywords, word)
		}
	}
	return analysis, nil
}

// RefineQuery defaults to the last user message unchanged.
func (m *MockOracle) RefineQuery(ctx context.Context, history []core.Message) (string, error) {
	m.record("RefineQuery")
	if m.RefineQueryFunc != nil {
		return m.RefineQueryFunc(ctx, history)
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == core.RoleUser {
			return history[i].Content, nil
		}
	}
	return "", &core.OracleError{Op: "refine", Err: core.ErrMalformedResponse}
}

// PlanSearchQueries defaults to a single query: the rationale if present, else the question.
func (m *MockOracle) PlanSearchQueries(ctx context.Context, query string, prior []core.SearchQuery, rationale string) ([]core.SearchQuery, error) {
	m.record("PlanSearchQueries")
	if m.PlanSearchQueriesFunc != nil {
		return m.PlanSearchQueriesFunc(ctx, query, prior, rationale)
	}
	text := query
	if rationale != "" {
		text = rationale
	}
	return []core.SearchQuery{{ID: len(prior) + 1, Text: text}}, nil
}

// GenerateAnswer defaults to a summary of how much evidence was supplied.
func (m *MockOracle) GenerateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.Answer, error) {
	m.record("GenerateAnswer")
	if m.GenerateAnswerFunc != nil {
		return m.GenerateAnswerFunc(ctx, evidence, history)
	}
	return &core.Answer{Response: fmt.Sprintf("answer from %d documents", len(evidence))}, nil
}

// EvaluateAnswer defaults to a satisfactory rating with StepFinish.
func (m *MockOracle) EvaluateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.EvaluationResult, error) {
	m.record("EvaluateAnswer")
	if m.EvaluateAnswerFunc != nil {
		return m.EvaluateAnswerFunc(ctx, evidence, history)
	}
	return &core.EvaluationResult{
		Evaluation: "the answer addresses the question",
		Rating:     core.RatingSatisfactory,
		NextStep:   core.StepFinish,
	}, nil
}

// ExtractLinks defaults to no links.
func (m *MockOracle) ExtractLinks(ctx context.Context, evidence []core.RetrievedDocument, recent []core.Message) ([]string, error) {
	m.record("ExtractLinks")
	if m.ExtractLinksFunc != nil {
		return m.ExtractLinksFunc(ctx, evidence, recent)
	}
	return nil, nil
}

// PlanDBQueries defaults to the need itself with the default result count.
func (m *MockOracle) PlanDBQueries(ctx context.Context, need string) ([]core.DBQuery, error) {
	m.record("PlanDBQueries")
	if m.PlanDBQueriesFunc != nil {
		return m.PlanDBQueriesFunc(ctx, need)
	}
	return []core.DBQuery{{Query: need, ResultCount: core.DefaultResultCount}}, nil
}
