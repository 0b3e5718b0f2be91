// Package rerank scores candidate documents against a query so retrieval can
// reorder them by relevance.
package rerank

import (
	"context"
	"errors"
	"fmt"

	"github.com/poiesic/quarry/core"
)

// ErrScoreMismatch is returned when a scorer does not return exactly one
// score per document.
var ErrScoreMismatch = errors.New("score count does not match document count")

// Scorer rates how relevant each document is to a query.
// Scores are returned in input order; higher is more relevant.
type Scorer interface {
	Score(ctx context.Context, query string, docs []string) ([]float32, error)
}

// Embedder is the subset of ai.Embedder used by EmbeddingScorer.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbeddingScorer scores documents by cosine similarity between embeddings.
// It is the fallback when no cross-encoder endpoint is configured.
type EmbeddingScorer struct {
	embedder Embedder
}

var _ Scorer = (*EmbeddingScorer)(nil)

// NewEmbeddingScorer creates a scorer backed by an embedding model.
func NewEmbeddingScorer(embedder Embedder) (*EmbeddingScorer, error) {
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	return &EmbeddingScorer{embedder: embedder}, nil
}

// Score implements Scorer.
func (s *EmbeddingScorer) Score(ctx context.Context, query string, docs []string) ([]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	docVecs, err := s.embedder.EmbedTexts(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}
	if len(docVecs) != len(docs) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrScoreMismatch, len(docs), len(docVecs))
	}

	scores := make([]float32, len(docs))
	for i, v := range docVecs {
		scores[i] = core.CosineSimilarity(queryVec, v)
	}
	return scores, nil
}
