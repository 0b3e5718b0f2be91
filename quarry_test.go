package quarry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/poiesic/quarry/ai/mock"
	"github.com/poiesic/quarry/config"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/orchestrator"
	"github.com/poiesic/quarry/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPage = "https://example.org/st5"

type noEntities struct{}

func (noEntities) Entities(string) []string { return nil }

type stubSearch struct{}

func (stubSearch) Search(ctx context.Context, query string) ([]websearch.Result, error) {
	return []websearch.Result{{Source: "Example", Link: testPage, Title: "Season five"}}, nil
}

type stubFetcher struct{}

func (stubFetcher) CanFetch(ctx context.Context, url string) bool { return true }

func (stubFetcher) Fetch(ctx context.Context, url string) (*core.Page, error) {
	if url != testPage {
		return nil, fmt.Errorf("%w: %s: status 404", core.ErrFetch, url)
	}
	return &core.Page{
		URL:      url,
		Text:     "# Stranger Things\nSeason five premieres in November 2025.",
		Metadata: map[string]string{core.MetaLink: url},
	}, nil
}

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Store.InMemory = true
	cfg.Store.Path = ""
	return cfg
}

func newTestEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	provider := mock.NewMockProviderWithServices(mock.NewBagOfWordsEmbedder(), mock.NewMockOracle())
	opts = append([]EngineOption{
		WithAIProvider(provider),
		WithSearchProvider(stubSearch{}),
		WithFetcher(stubFetcher{}),
		WithEntityExtractor(noEntities{}),
	}, opts...)

	e, err := NewEngine(memoryConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNewEngine(t *testing.T) {
	t.Run("builds default collaborators", func(t *testing.T) {
		cfg := config.Default()
		cfg.Search.APIKey = "test-key"
		cfg.Store.Path = filepath.Join(t.TempDir(), "quarry.db")

		e, err := NewEngine(cfg)
		require.NoError(t, err)
		assert.NotNil(t, e.Store())
		assert.NotNil(t, e.ChunkRepository())
		assert.Equal(t, cfg.Session.FetchCap, e.Orchestrator().Budgets().FetchCap)
		assert.NoError(t, e.Close())
	})

	t.Run("brave provider", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Search.Provider = config.ProviderBrave
		cfg.Search.APIKey = "test-key"
		cfg.Rerank.URL = "http://localhost:8080/rerank"

		e, err := NewEngine(cfg, WithAIProvider(mock.NewMockProvider()))
		require.NoError(t, err)
		assert.NoError(t, e.Close())
	})

	t.Run("missing search key", func(t *testing.T) {
		_, err := NewEngine(memoryConfig(), WithAIProvider(mock.NewMockProvider()))
		assert.Error(t, err)
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := memoryConfig()
		cfg.Session.FetchCap = 0
		_, err := NewEngine(cfg, WithAIProvider(mock.NewMockProvider()))
		assert.ErrorContains(t, err, "session.fetch_cap")
	})

	t.Run("invalid store path", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "quarry.db")
		require.NoError(t, os.WriteFile(file, []byte("not a database"), 0644))

		provider := mock.NewMockProvider().(*mock.MockProvider)
		cfg := config.Default()
		cfg.Store.Path = file
		_, err := NewEngine(cfg,
			WithAIProvider(provider),
			WithSearchProvider(stubSearch{}),
			WithFetcher(stubFetcher{}))
		assert.ErrorContains(t, err, "is not a directory")
		assert.True(t, provider.Closed())
	})

	t.Run("close releases the provider", func(t *testing.T) {
		provider := mock.NewMockProvider().(*mock.MockProvider)
		e, err := NewEngine(memoryConfig(),
			WithAIProvider(provider),
			WithSearchProvider(stubSearch{}),
			WithFetcher(stubFetcher{}))
		require.NoError(t, err)
		assert.False(t, provider.Closed())
		assert.NoError(t, e.Close())
		assert.True(t, provider.Closed())
	})
}

func TestEngine_Ask(t *testing.T) {
	var finished int
	monitor := finishCounter{n: &finished}
	e := newTestEngine(t, WithMonitor(monitor))
	ctx := context.Background()

	s, err := e.Ask(ctx, "When does Stranger Things season five premiere?", nil)
	require.NoError(t, err)
	assert.Equal(t, orchestrator.StatusFinished, s.Status)
	assert.Equal(t, "answer from 1 documents", s.Answer)
	assert.Equal(t, 1, finished)

	rec := s.Source(testPage)
	require.NotNil(t, rec)
	assert.True(t, rec.Persisted)

	count, err := e.ChunkRepository().CountChunks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	docs, err := e.Retrieve(ctx, "season five premieres", 3)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Season five premieres in November 2025.", docs[0].Text)
	assert.Equal(t, testPage, docs[0].Metadata[core.MetaLink])

	n, err := e.Reembed(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = e.Retrieve(ctx, "season", 0)
	assert.Error(t, err)
}

func TestEngine_AskEmptyQuestion(t *testing.T) {
	e := newTestEngine(t)
	s, err := e.Ask(context.Background(), "", nil)
	assert.ErrorIs(t, err, core.ErrEmptyQuery)
	assert.Nil(t, s)
}

func TestEngine_RetrieveEmptyStore(t *testing.T) {
	e := newTestEngine(t)
	docs, err := e.Retrieve(context.Background(), "season five", 3)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

type finishCounter struct {
	n *int
}

func (finishCounter) StateEntered(*orchestrator.Session, orchestrator.State) {}

func (finishCounter) RoundCompleted(*orchestrator.Session, *core.EvaluationResult) {}

func (f finishCounter) Finished(*orchestrator.Session) { *f.n++ }
