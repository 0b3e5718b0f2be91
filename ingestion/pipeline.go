package ingestion

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/fetch"
	"github.com/poiesic/quarry/relevance"
	"github.com/poiesic/quarry/storage"
)

// Defaults for a Pipeline.
const (
	DefaultPoolSize    = 10
	DefaultCallTimeout = 60 * time.Second
)

// Pipeline orchestrates fetching, filtering and persisting web pages.
// It bounds concurrent page work with a worker pool.
type Pipeline struct {
	fetcher     fetch.Fetcher
	filter      *relevance.Filter
	store       storage.VectorStore
	pool        *ants.Pool
	callTimeout time.Duration
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent processing.
// Default is DefaultPoolSize, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithCallTimeout bounds each fetch and each filter-and-persist call.
func WithCallTimeout(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d <= 0 {
			return errors.New("call timeout must be positive")
		}
		p.callTimeout = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	fetcher fetch.Fetcher,
	filter *relevance.Filter,
	store storage.VectorStore,
	opts ...Option,
) (*Pipeline, error) {
	if fetcher == nil {
		return nil, ErrFetcherRequired
	}
	if filter == nil {
		return nil, ErrFilterRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}

	pool, err := ants.NewPool(DefaultPoolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		fetcher:     fetcher,
		filter:      filter,
		store:       store,
		pool:        pool,
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}
	p.logger = p.logger.With("component", "ingestion")

	return p, nil
}

// Prepare embeds a session's target terms for the relevance filter.
func (p *Pipeline) Prepare(ctx context.Context, terms core.TargetTerms) (*relevance.Targets, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.filter.Prepare(ctx, terms)
}

// CanFetch reports whether the fetcher is permitted to retrieve url.
func (p *Pipeline) CanFetch(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()
	return p.fetcher.CanFetch(ctx, url)
}

// Run ingests jobs concurrently and waits for all of them.
// Outcomes are returned in job order. The error is the first failure to
// embed or store accepted content; pages that failed to fetch are only
// reported in their outcome.
func (p *Pipeline) Run(ctx context.Context, targets *relevance.Targets, jobs []Job) ([]Outcome, error) {
	outcomes := make([]Outcome, len(jobs))
	if len(jobs) == 0 {
		return outcomes, nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
	}

	for i, job := range jobs {
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			out, err := p.processPage(ctx, targets, job)
			outcomes[i] = out
			if err != nil {
				p.logger.Error("error persisting page", "url", job.URL, "err", err)
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			outcomes[i] = Outcome{URL: job.URL, Status: StatusFailed, Err: err}
			setErr(err)
		}
	}
	wg.Wait()

	persisted := 0
	for _, out := range outcomes {
		if out.Status == StatusPersisted {
			persisted++
		}
	}
	p.logger.Info("ingested pages", "pages", len(jobs), "persisted", persisted)

	return outcomes, firstErr
}

// Release releases resources including the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
