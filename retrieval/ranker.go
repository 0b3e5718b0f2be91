package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/metrics"
	"github.com/poiesic/quarry/rerank"
	"github.com/poiesic/quarry/storage"
)

// DefaultPoolSize is the number of candidates fetched per sub-query before reranking.
const DefaultPoolSize = 15

// Ranker selects evidence from the vector store. The oracle splits an
// information need into sub-queries; each sub-query draws a candidate pool
// from the store that a cross-encoder rescores and truncates.
type Ranker struct {
	store    storage.VectorStore
	oracle   ai.Oracle
	scorer   rerank.Scorer
	poolSize int
	logger   *slog.Logger
}

// Option configures a Ranker.
type Option func(*Ranker) error

// WithPoolSize sets the candidate pool size per sub-query.
func WithPoolSize(size int) Option {
	return func(r *Ranker) error {
		if size < 1 {
			return fmt.Errorf("pool size must be positive, got %d", size)
		}
		r.poolSize = size
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Ranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRanker creates a new ranker.
func NewRanker(store storage.VectorStore, oracle ai.Oracle, scorer rerank.Scorer, opts ...Option) (*Ranker, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if oracle == nil {
		return nil, ErrOracleRequired
	}
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	r := &Ranker{
		store:    store,
		oracle:   oracle,
		scorer:   scorer,
		poolSize: DefaultPoolSize,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "retrieval")

	return r, nil
}

// Need describes what a session wants from the store.
type Need struct {
	Query           string
	ExecutedQueries []string
	Rationale       string
}

// String renders the need as the request given to the oracle.
func (n Need) String() string {
	rationale := n.Rationale
	if rationale == "" {
		rationale = "N/A"
	}
	return fmt.Sprintf("**User Query**\n%s\n**Performed Web Search Queries**\n%s\n**Action Rationale (CRITICAL):**\n%s",
		n.Query, strings.Join(n.ExecutedQueries, "\n"), rationale)
}

// Retrieve returns reranked documents for the need.
// Results are grouped by sub-query in plan order and may contain duplicates
// across sub-queries.
func (r *Ranker) Retrieve(ctx context.Context, need Need) ([]core.RetrievedDocument, error) {
	return r.RetrieveWithMonitor(ctx, need, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
func (r *Ranker) RetrieveWithMonitor(ctx context.Context, need Need, monitor RankMonitor) ([]core.RetrievedDocument, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	request := need.String()
	monitor.Start(request)

	start := time.Now()
	plan, err := r.oracle.PlanDBQueries(ctx, request)
	metrics.ObserveOracle("plan_db", start, err)
	if err != nil {
		r.logger.Error("error planning store queries", "err", err)
		return nil, err
	}
	monitor.AfterPlan(plan)

	var results []core.RetrievedDocument
	for _, q := range plan {
		docs, err := r.rankQuery(ctx, q, monitor)
		if err != nil {
			return nil, err
		}
		results = append(results, docs...)
	}

	r.logger.Debug("retrieval complete", "queries", len(plan), "documents", len(results))
	monitor.Finish(results)
	return results, nil
}

// rankQuery reranks one sub-query's candidate pool and keeps the top results.
func (r *Ranker) rankQuery(ctx context.Context, q core.DBQuery, monitor RankMonitor) ([]core.RetrievedDocument, error) {
	candidates, err := r.store.SimilaritySearch(ctx, q.Query, r.poolSize)
	if err != nil {
		r.logger.Error("error querying store", "query", q.Query, "err", err)
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	monitor.AfterCandidates(q.Query, candidates)
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := r.scorer.Score(ctx, q.Query, texts)
	if err != nil {
		r.logger.Error("error reranking candidates", "query", q.Query, "err", err)
		return nil, fmt.Errorf("rerank: %w", err)
	}
	if len(scores) != len(candidates) {
		return nil, fmt.Errorf("rerank: %w: expected %d, received %d", rerank.ErrScoreMismatch, len(candidates), len(scores))
	}

	ranked := make([]core.RetrievedDocument, len(candidates))
	for i, c := range candidates {
		c.Score = scores[i]
		ranked[i] = c
	}

	// Sort by score descending; ties keep store order
	slices.SortStableFunc(ranked, func(a, b core.RetrievedDocument) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})

	if n := core.ClampResultCount(q.ResultCount); len(ranked) > n {
		ranked = ranked[:n]
	}
	monitor.AfterRerank(q.Query, ranked)
	return ranked, nil
}
