package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/quarry/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// embedBatchSize is the most texts sent in one embeddings request.
const embedBatchSize = 64

var errVectorCount = errors.New("embedding service returned the wrong number of vectors")

// Embedder implements ai.Embedder on an OpenAI-compatible embeddings endpoint.
// Queries and stored chunks go through the same model so their vectors are
// comparable.
type Embedder struct {
	embedder embeddings.Embedder
	model    string
	logger   *slog.Logger
}

func newEmbedder(config *ai.Config) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(config.APIKey),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, fmt.Errorf("creating embedding client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(embedBatchSize))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		model:    config.EmbeddingModel,
		logger:   slog.Default().With("component", "openai-embedder", "model", config.EmbeddingModel),
	}, nil
}

// NewEmbedder creates an embedder for config.EmbeddingHost and config.EmbeddingModel.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config)
}

// EmbedText embeds a single query or target term.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vector, err := e.embedder.EmbedQuery(ctx, text)
	if err != nil {
		e.logger.Error("failed to embed text", "length", len(text), "err", err)
		return nil, fmt.Errorf("embedding text: %w", err)
	}
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: got an empty vector", errVectorCount)
	}
	return vector, nil
}

// EmbedTexts embeds page chunks. Requests are split into batches of embedBatchSize.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	e.logger.Debug("embedding texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		e.logger.Error("failed to embed texts", "count", len(texts), "err", err)
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d for %d texts", errVectorCount, len(vectors), len(texts))
	}
	return vectors, nil
}
