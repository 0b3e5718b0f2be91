// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package quarry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/ai/openai"
	"github.com/poiesic/quarry/config"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/fetch"
	"github.com/poiesic/quarry/ingestion"
	"github.com/poiesic/quarry/orchestrator"
	"github.com/poiesic/quarry/reembed"
	"github.com/poiesic/quarry/relevance"
	"github.com/poiesic/quarry/rerank"
	"github.com/poiesic/quarry/retrieval"
	"github.com/poiesic/quarry/storage"
	"github.com/poiesic/quarry/storage/badger"
	"github.com/poiesic/quarry/websearch"
)

// Engine owns the store and every collaborator a research session needs.
type Engine struct {
	config   *config.Config
	backend  *badger.Backend
	chunks   *badger.ChunkRepository
	store    *storage.EmbeddingStore
	provider ai.AIProvider
	pipeline *ingestion.Pipeline
	ranker   *retrieval.Ranker
	orch     *orchestrator.Orchestrator
	logger   *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*engineOptions)

type engineOptions struct {
	provider ai.AIProvider
	search   websearch.Provider
	fetcher  fetch.Fetcher
	scorer   rerank.Scorer
	entities relevance.EntityExtractor
	monitor  orchestrator.Monitor
	logger   *slog.Logger
}

// WithAIProvider replaces the OpenAI-compatible provider built from the config.
func WithAIProvider(p ai.AIProvider) EngineOption {
	return func(o *engineOptions) {
		o.provider = p
	}
}

// WithSearchProvider replaces the search provider built from the config.
func WithSearchProvider(p websearch.Provider) EngineOption {
	return func(o *engineOptions) {
		o.search = p
	}
}

// WithFetcher replaces the HTTP fetcher built from the config.
func WithFetcher(f fetch.Fetcher) EngineOption {
	return func(o *engineOptions) {
		o.fetcher = f
	}
}

// WithScorer replaces the reranker built from the config.
func WithScorer(s rerank.Scorer) EngineOption {
	return func(o *engineOptions) {
		o.scorer = s
	}
}

// WithEntityExtractor replaces the prose named entity recognizer.
func WithEntityExtractor(e relevance.EntityExtractor) EngineOption {
	return func(o *engineOptions) {
		o.entities = e
	}
}

// WithMonitor observes every session run by the engine.
func WithMonitor(m orchestrator.Monitor) EngineOption {
	return func(o *engineOptions) {
		o.monitor = m
	}
}

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// NewEngine opens the store and wires every component from cfg.
func NewEngine(cfg *config.Config, opts ...EngineOption) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &engineOptions{
		entities: relevance.ProseEntities{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(options)
	}
	logger := options.logger

	provider := options.provider
	if provider == nil {
		var err error
		provider, err = openai.NewProvider(aiConfig(cfg.AI))
		if err != nil {
			return nil, err
		}
	}

	search := options.search
	if search == nil {
		var err error
		search, err = newSearchProvider(cfg.Search, logger)
		if err != nil {
			provider.Close()
			return nil, err
		}
	}

	fetcher := options.fetcher
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(
			fetch.WithHTTPClient(&http.Client{Timeout: cfg.Fetch.Timeout}),
			fetch.WithUserAgent(cfg.Fetch.UserAgent),
			fetch.WithMaxBytes(cfg.Fetch.MaxBytes),
			fetch.WithLogger(logger))
	}

	scorer := options.scorer
	if scorer == nil {
		var err error
		scorer, err = newScorer(cfg.Rerank, provider.Embedder())
		if err != nil {
			provider.Close()
			return nil, err
		}
	}

	backend, err := badger.OpenBackend(cfg.Store.Path, cfg.Store.InMemory)
	if err != nil {
		provider.Close()
		return nil, err
	}

	e := &Engine{config: cfg, backend: backend, provider: provider, logger: logger}
	if err := e.wire(search, fetcher, scorer, options); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) wire(search websearch.Provider, fetcher fetch.Fetcher, scorer rerank.Scorer, options *engineOptions) error {
	cfg := e.config

	chunks, err := badger.NewChunkRepository(e.backend)
	if err != nil {
		return err
	}
	e.chunks = chunks

	e.store, err = storage.NewEmbeddingStore(chunks, e.provider.Embedder(), cfg.Store.EmbedBatchSize, e.logger)
	if err != nil {
		return err
	}

	filter, err := relevance.NewFilter(e.provider.Embedder(),
		relevance.WithThresholds(cfg.Filter.HeaderThreshold, cfg.Filter.ChunkThreshold),
		relevance.WithChunking(cfg.Filter.ChunkSize, cfg.Filter.ChunkOverlap),
		relevance.WithEntityExtractor(options.entities),
		relevance.WithLogger(e.logger))
	if err != nil {
		return err
	}

	e.pipeline, err = ingestion.NewPipeline(fetcher, filter, e.store,
		ingestion.WithPoolSize(cfg.Session.FetchCap),
		ingestion.WithCallTimeout(cfg.Session.CallTimeout),
		ingestion.WithLogger(e.logger))
	if err != nil {
		return err
	}

	e.ranker, err = retrieval.NewRanker(e.store, e.provider.Oracle(), scorer,
		retrieval.WithPoolSize(cfg.Rerank.PoolSize),
		retrieval.WithLogger(e.logger))
	if err != nil {
		return err
	}

	e.orch, err = orchestrator.New(e.provider.Oracle(), search, e.pipeline, e.ranker,
		orchestrator.WithBudgets(budgets(cfg.Session)),
		orchestrator.WithMonitor(options.monitor),
		orchestrator.WithLogger(e.logger))
	return err
}

// Ask runs a research session for question. prior is earlier conversation,
// oldest first, and may be empty.
func (e *Engine) Ask(ctx context.Context, question string, prior []core.Message) (*orchestrator.Session, error) {
	return e.orch.Run(ctx, question, prior)
}

// Retrieve runs a plain similarity search against the store. An empty store
// returns no documents without embedding the query.
func (e *Engine) Retrieve(ctx context.Context, query string, k int) ([]core.RetrievedDocument, error) {
	count, err := e.chunks.CountChunks(ctx)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	return e.store.SimilaritySearch(ctx, query, k)
}

// Reembed re-embeds every stored chunk with the configured embedding model.
func (e *Engine) Reembed(ctx context.Context, cfg *reembed.Config, progress io.Writer) (int, error) {
	return reembed.NewReembedder(e.chunks, e.provider.Embedder(), cfg, progress).Run(ctx)
}

// ChunkRepository returns the underlying chunk repository.
func (e *Engine) ChunkRepository() storage.ChunkRepository {
	return e.chunks
}

// Store returns the vector store sessions persist into.
func (e *Engine) Store() storage.VectorStore {
	return e.store
}

// Orchestrator returns the session runner.
func (e *Engine) Orchestrator() *orchestrator.Orchestrator {
	return e.orch
}

// Close releases the worker pool, the AI provider and the store.
func (e *Engine) Close() error {
	if e.pipeline != nil {
		e.pipeline.Release()
	}

	if err := e.provider.Close(); err != nil {
		e.logger.Error("error closing AI provider", "err", err)
	}

	var errs []error
	if e.chunks != nil {
		if err := e.chunks.Close(); err != nil {
			e.logger.Error("error closing chunk repository", "err", err)
			errs = append(errs, err)
		}
	}
	if err := e.backend.Close(); err != nil {
		e.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func aiConfig(c config.AIConfig) *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.EmbeddingHost),
		ai.WithOracleHost(c.OracleHost),
		ai.WithEmbeddingModel(c.EmbeddingModel),
		ai.WithOracleModel(c.OracleModel),
		ai.WithAPIKey(c.APIKey),
		ai.WithTemperature(c.Temperature),
	)
}

func budgets(c config.SessionConfig) orchestrator.Budgets {
	return orchestrator.Budgets{
		MaxIterations: c.MaxIterations,
		MaxCrawlDepth: c.MaxCrawlDepth,
		FetchCap:      c.FetchCap,
		CallTimeout:   c.CallTimeout,
	}
}

func newSearchProvider(c config.SearchConfig, logger *slog.Logger) (websearch.Provider, error) {
	opts := []websearch.Option{
		websearch.WithMaxResults(c.MaxResults),
		websearch.WithRetries(c.Retries, c.RetryDelay),
		websearch.WithLogger(logger),
	}
	if c.RatePerSecond != 0 {
		opts = append(opts, websearch.WithRateLimit(c.RatePerSecond, c.Burst))
	}
	if c.BaseURL != "" {
		opts = append(opts, websearch.WithBaseURL(c.BaseURL))
	}

	switch c.Provider {
	case config.ProviderSerpAPI:
		return websearch.NewSerpAPI(c.APIKey, opts...)
	case config.ProviderBrave:
		return websearch.NewBrave(c.APIKey, opts...)
	default:
		return nil, fmt.Errorf("unknown search provider %q", c.Provider)
	}
}

func newScorer(c config.RerankConfig, embedder ai.Embedder) (rerank.Scorer, error) {
	if c.URL == "" {
		return rerank.NewEmbeddingScorer(embedder)
	}
	return rerank.NewHTTPScorer(c.URL, c.Model, c.APIKey, nil)
}
