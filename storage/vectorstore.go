package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"

	"github.com/poiesic/quarry/core"
)

// Embedder is the subset of ai.Embedder the vector store needs.
// It is declared here so storage does not import the ai package.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// DefaultEmbedBatchSize is the number of texts embedded per request.
const DefaultEmbedBatchSize = 32

// EmbeddingStore implements VectorStore on top of a ChunkRepository and an
// embedding service. Inserted texts are embedded in batches, normalized and
// stored as chunks keyed by their content.
type EmbeddingStore struct {
	repo      ChunkRepository
	embedder  Embedder
	batchSize int
	logger    *slog.Logger
}

var _ VectorStore = (*EmbeddingStore)(nil)

// NewEmbeddingStore creates a vector store. batchSize <= 0 uses DefaultEmbedBatchSize.
func NewEmbeddingStore(repo ChunkRepository, embedder Embedder, batchSize int, logger *slog.Logger) (*EmbeddingStore, error) {
	if repo == nil {
		return nil, errors.New("chunk repository required")
	}
	if embedder == nil {
		return nil, errors.New("embedder required")
	}
	if batchSize <= 0 {
		batchSize = DefaultEmbedBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbeddingStore{
		repo:      repo,
		embedder:  embedder,
		batchSize: batchSize,
		logger:    logger.With("component", "vectorstore"),
	}, nil
}

// Insert embeds and stores texts. Texts already in the store are skipped.
func (s *EmbeddingStore) Insert(ctx context.Context, texts []string, metadatas []map[string]string) error {
	if metadatas != nil && len(metadatas) != len(texts) {
		return fmt.Errorf("%w: %d texts but %d metadata entries", ErrInvalidQuery, len(texts), len(metadatas))
	}

	for start := 0; start < len(texts); start += s.batchSize {
		end := min(start+s.batchSize, len(texts))
		batch := texts[start:end]

		vectors, err := s.embedder.EmbedTexts(ctx, batch)
		if err != nil {
			return fmt.Errorf("embedding chunks: %w", err)
		}
		if len(vectors) != len(batch) {
			return fmt.Errorf("%w: expected %d, received %d", ErrEmbeddingMismatch, len(batch), len(vectors))
		}

		chunks := make([]*core.Chunk, len(batch))
		for i, text := range batch {
			var meta map[string]string
			if metadatas != nil {
				meta = maps.Clone(metadatas[start+i])
			}
			chunks[i] = &core.Chunk{
				Text:     text,
				Metadata: meta,
				Vector:   core.NormalizeVector(vectors[i]),
			}
		}

		added, err := s.repo.AddChunks(ctx, chunks...)
		if err != nil {
			return err
		}
		s.logger.Debug("stored chunks", "submitted", len(chunks), "added", len(added))
	}
	return nil
}

// SimilaritySearch returns up to k stored documents most similar to query.
func (s *EmbeddingStore) SimilaritySearch(ctx context.Context, query string, k int) ([]core.RetrievedDocument, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", ErrInvalidQuery)
	}

	vector, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	// -1 is the lowest cosine similarity, so nothing is filtered by score
	results, err := s.repo.FindSimilar(ctx, core.NormalizeVector(vector), -1, k)
	if err != nil {
		return nil, err
	}

	docs := make([]core.RetrievedDocument, len(results))
	for i, result := range results {
		docs[i] = core.RetrievedDocument{
			Text:     result.Record.Text,
			Metadata: maps.Clone(result.Record.Metadata),
			Score:    result.Score,
		}
	}
	return docs, nil
}
