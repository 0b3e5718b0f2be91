package storage

import (
	"context"

	"github.com/poiesic/quarry/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds chunks similar to the given vector.
	// Returns chunks with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first); equal scores
	// keep key order.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

type ChunkRepository interface {
	Repository

	// AddChunks inserts chunks. IDs are derived from chunk text when zero.
	// Chunks whose ID is already stored are skipped, so inserting the same
	// text twice is a no-op. Returns only the chunks that were written.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// ListChunks returns up to limit chunks in key order, starting after the
	// given ID. Pass 0 to start from the beginning.
	ListChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error)

	// UpdateVectors replaces the stored vectors of existing chunks.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error

	// CountChunks returns the number of stored chunks.
	CountChunks(ctx context.Context) (int, error)
}

// VectorStore is the text-level semantic store used by research sessions.
// Implementations must be safe for concurrent Insert calls.
type VectorStore interface {
	// Insert embeds and stores texts. metadatas is either nil or the same
	// length as texts.
	Insert(ctx context.Context, texts []string, metadatas []map[string]string) error

	// SimilaritySearch returns up to k stored documents ordered by
	// descending similarity to query.
	SimilaritySearch(ctx context.Context, query string, k int) ([]core.RetrievedDocument, error)
}
