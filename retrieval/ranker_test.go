package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/rerank"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	results map[string][]core.RetrievedDocument
	err     error
	ks      []int
}

func (f *fakeStore) Insert(ctx context.Context, texts []string, metadatas []map[string]string) error {
	return nil
}

func (f *fakeStore) SimilaritySearch(ctx context.Context, query string, k int) ([]core.RetrievedDocument, error) {
	f.ks = append(f.ks, k)
	if f.err != nil {
		return nil, f.err
	}
	return f.results[query], nil
}

// scoreByText scores each document from a fixed table.
type scoreByText map[string]float32

func (s scoreByText) Score(ctx context.Context, query string, docs []string) ([]float32, error) {
	scores := make([]float32, len(docs))
	for i, d := range docs {
		scores[i] = s[d]
	}
	return scores, nil
}

type scorerFunc func(ctx context.Context, query string, docs []string) ([]float32, error)

func (f scorerFunc) Score(ctx context.Context, query string, docs []string) ([]float32, error) {
	return f(ctx, query, docs)
}

func docs(texts ...string) []core.RetrievedDocument {
	out := make([]core.RetrievedDocument, len(texts))
	for i, t := range texts {
		out[i] = core.RetrievedDocument{Text: t, Metadata: map[string]string{core.MetaLink: "https://example.com/" + t}}
	}
	return out
}

func texts(docs []core.RetrievedDocument) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Text
	}
	return out
}

func planOf(queries ...core.DBQuery) *mock.MockOracle {
	oracle := mock.NewMockOracle()
	oracle.PlanDBQueriesFunc = func(ctx context.Context, need string) ([]core.DBQuery, error) {
		return queries, nil
	}
	return oracle
}

func TestNewRanker(t *testing.T) {
	store := &fakeStore{}
	oracle := mock.NewMockOracle()
	scorer := scoreByText{}

	t.Run("valid configuration", func(t *testing.T) {
		r, err := NewRanker(store, oracle, scorer, WithLogger(slog.Default()), WithPoolSize(30))
		require.NoError(t, err)
		assert.Equal(t, 30, r.poolSize)
	})

	t.Run("nil store", func(t *testing.T) {
		_, err := NewRanker(nil, oracle, scorer)
		assert.Equal(t, ErrStoreRequired, err)
	})

	t.Run("nil oracle", func(t *testing.T) {
		_, err := NewRanker(store, nil, scorer)
		assert.Equal(t, ErrOracleRequired, err)
	})

	t.Run("nil scorer", func(t *testing.T) {
		_, err := NewRanker(store, oracle, nil)
		assert.Equal(t, ErrScorerRequired, err)
	})

	t.Run("invalid pool size", func(t *testing.T) {
		_, err := NewRanker(store, oracle, scorer, WithPoolSize(0))
		assert.Error(t, err)
	})
}

func TestRetrieve_RerankOrderAndTruncation(t *testing.T) {
	store := &fakeStore{results: map[string][]core.RetrievedDocument{
		"release date": docs("a", "b", "c", "d"),
	}}
	scorer := scoreByText{"a": 0.1, "b": 0.7, "c": 0.9, "d": 0.7}

	r, err := NewRanker(store, planOf(core.DBQuery{Query: "release date", ResultCount: 3}), scorer)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), Need{Query: "q"})
	require.NoError(t, err)

	assert.Equal(t, []string{"c", "b", "d"}, texts(results), "descending, ties keep store order")
	assert.Equal(t, float32(0.9), results[0].Score)
	assert.Equal(t, "https://example.com/c", results[0].URL())
	assert.Equal(t, []int{DefaultPoolSize}, store.ks)
}

func TestRetrieve_ConcatenatesInPlanOrder(t *testing.T) {
	store := &fakeStore{results: map[string][]core.RetrievedDocument{
		"cast":     docs("x", "shared"),
		"premiere": docs("shared", "y"),
	}}
	scorer := scoreByText{"x": 0.2, "shared": 0.5, "y": 0.9}

	r, err := NewRanker(store, planOf(
		core.DBQuery{Query: "cast", ResultCount: 5},
		core.DBQuery{Query: "premiere", ResultCount: 1},
	), scorer)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), Need{Query: "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "x", "y"}, texts(results))
}

func TestRetrieve_ResultCountClamped(t *testing.T) {
	var many []string
	for i := 0; i < 30; i++ {
		many = append(many, string(rune('A'+i)))
	}
	store := &fakeStore{results: map[string][]core.RetrievedDocument{"q": docs(many...)}}

	r, err := NewRanker(store, planOf(core.DBQuery{Query: "q", ResultCount: 50}), scoreByText{}, WithPoolSize(30))
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), Need{Query: "q"})
	require.NoError(t, err)
	assert.Len(t, results, core.MaxResultCount)
}

func TestRetrieve_EmptyStore(t *testing.T) {
	called := false
	scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float32, error) {
		called = true
		return nil, nil
	})

	r, err := NewRanker(&fakeStore{}, planOf(core.DBQuery{Query: "q", ResultCount: 5}), scorer)
	require.NoError(t, err)

	results, err := r.Retrieve(context.Background(), Need{Query: "q"})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, called)
}

func TestRetrieve_Errors(t *testing.T) {
	ctx := context.Background()
	plan := core.DBQuery{Query: "q", ResultCount: 5}
	populated := &fakeStore{results: map[string][]core.RetrievedDocument{"q": docs("a", "b")}}

	t.Run("oracle", func(t *testing.T) {
		oracle := mock.NewMockOracle()
		oracle.PlanDBQueriesFunc = func(ctx context.Context, need string) ([]core.DBQuery, error) {
			return nil, &core.OracleError{Op: "plan_db", Err: core.ErrMalformedResponse}
		}
		r, err := NewRanker(populated, oracle, scoreByText{})
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, Need{Query: "q"})
		var oe *core.OracleError
		assert.ErrorAs(t, err, &oe)
	})

	t.Run("store", func(t *testing.T) {
		r, err := NewRanker(&fakeStore{err: errors.New("store closed")}, planOf(plan), scoreByText{})
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, Need{Query: "q"})
		assert.ErrorContains(t, err, "store closed")
	})

	t.Run("scorer", func(t *testing.T) {
		scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float32, error) {
			return nil, errors.New("model unavailable")
		})
		r, err := NewRanker(populated, planOf(plan), scorer)
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, Need{Query: "q"})
		assert.ErrorContains(t, err, "model unavailable")
	})

	t.Run("score count mismatch", func(t *testing.T) {
		scorer := scorerFunc(func(ctx context.Context, query string, docs []string) ([]float32, error) {
			return []float32{1}, nil
		})
		r, err := NewRanker(populated, planOf(plan), scorer)
		require.NoError(t, err)

		_, err = r.Retrieve(ctx, Need{Query: "q"})
		assert.ErrorIs(t, err, rerank.ErrScoreMismatch)
	})
}

type recordingMonitor struct {
	noopMonitor
	need     string
	plan     []core.DBQuery
	reranked map[string][]string
	finished []core.RetrievedDocument
}

func (m *recordingMonitor) Start(need string)                { m.need = need }
func (m *recordingMonitor) AfterPlan(queries []core.DBQuery) { m.plan = queries }
func (m *recordingMonitor) AfterRerank(query string, kept []core.RetrievedDocument) {
	if m.reranked == nil {
		m.reranked = make(map[string][]string)
	}
	m.reranked[query] = texts(kept)
}
func (m *recordingMonitor) Finish(results []core.RetrievedDocument) { m.finished = results }

func TestRetrieveWithMonitor(t *testing.T) {
	store := &fakeStore{results: map[string][]core.RetrievedDocument{"q": docs("a", "b")}}
	r, err := NewRanker(store, planOf(core.DBQuery{Query: "q", ResultCount: 1}), scoreByText{"a": 0.1, "b": 0.2})
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	need := Need{Query: "Stranger Things latest season", ExecutedQueries: []string{"st5 release"}, Rationale: "date missing"}
	results, err := r.RetrieveWithMonitor(context.Background(), need, monitor)
	require.NoError(t, err)

	assert.Contains(t, monitor.need, "Stranger Things latest season")
	assert.Contains(t, monitor.need, "st5 release")
	assert.Contains(t, monitor.need, "date missing")
	assert.Len(t, monitor.plan, 1)
	assert.Equal(t, []string{"b"}, monitor.reranked["q"])
	assert.Equal(t, results, monitor.finished)
}

func TestNeedString_DefaultRationale(t *testing.T) {
	assert.Contains(t, Need{Query: "q"}.String(), "N/A")
}

// planObservations returns how many plan_db latencies were recorded with status.
func planObservations(t *testing.T, status string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	h, ok := metrics.OracleLatency.WithLabelValues("plan_db", status).(prometheus.Metric)
	require.True(t, ok)
	require.NoError(t, h.Write(m))
	return m.GetHistogram().GetSampleCount()
}

func TestRetrieve_ObservesPlanLatency(t *testing.T) {
	store := &fakeStore{results: map[string][]core.RetrievedDocument{"q": docs("a")}}

	t.Run("success", func(t *testing.T) {
		before := planObservations(t, "success")
		r, err := NewRanker(store, planOf(core.DBQuery{Query: "q", ResultCount: 1}), scoreByText{})
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), Need{Query: "q"})
		require.NoError(t, err)
		assert.Equal(t, before+1, planObservations(t, "success"))
	})

	t.Run("error", func(t *testing.T) {
		before := planObservations(t, "error")
		oracle := mock.NewMockOracle()
		oracle.PlanDBQueriesFunc = func(ctx context.Context, need string) ([]core.DBQuery, error) {
			return nil, &core.OracleError{Op: "plan_db", Err: core.ErrMalformedResponse}
		}
		r, err := NewRanker(store, oracle, scoreByText{})
		require.NoError(t, err)

		_, err = r.Retrieve(context.Background(), Need{Query: "q"})
		require.Error(t, err)
		assert.Equal(t, before+1, planObservations(t, "error"))
	})
}
