package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/retry"
	"github.com/poiesic/quarry/storage"
)

// BatchProcessor embeds one batch of chunks and stores the new vectors.
type BatchProcessor struct {
	repo           storage.ChunkRepository
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for each embedding call
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(repo storage.ChunkRepository, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &BatchProcessor{
		repo:           repo,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process re-embeds chunks and replaces their stored vectors.
// Vectors are normalized so similarity search can use the dot product.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	var embeddings [][]float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: expected %d, got %d", storage.ErrEmbeddingMismatch, len(chunks), len(embeddings))
	}

	for i := range chunks {
		chunks[i].Vector = core.NormalizeVector(embeddings[i])
	}

	if err := bp.repo.UpdateVectors(ctx, chunks...); err != nil {
		return fmt.Errorf("failed to update vectors: %w", err)
	}
	return nil
}
