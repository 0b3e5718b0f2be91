package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/retry"
	"github.com/poiesic/quarry/storage"
)

const (
	// conflictRetries bounds retries when concurrent sessions insert the same chunk.
	conflictRetries = 5
	conflictDelay   = 5 * time.Millisecond
)

// ChunkRepository implements storage.ChunkRepository for BadgerDB.
type ChunkRepository struct {
	backend *Backend
}

var _ storage.ChunkRepository = (*ChunkRepository)(nil)

// NewChunkRepository creates a new ChunkRepository.
func NewChunkRepository(backend *Backend) (*ChunkRepository, error) {
	if backend == nil {
		return nil, errors.New("backend is required")
	}
	return &ChunkRepository{
		backend: backend,
	}, nil
}

// Close releases resources. ChunkRepository has no resources to release.
func (r *ChunkRepository) Close() error {
	return nil
}

// FindSimilar delegates to the backend.
func (r *ChunkRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	return r.backend.FindSimilar(ctx, vector, minSimilarity, limit)
}

// WithTransaction delegates to the backend.
func (r *ChunkRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.backend.WithTransaction(ctx, fn)
}

// AddChunks inserts chunks that are not already stored.
// Write conflicts with a concurrent insert of the same chunk are retried; on
// retry the chunk is found and skipped.
func (r *ChunkRepository) AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error) {
	for _, chunk := range chunks {
		if err := core.ValidateChunk(chunk); err != nil {
			return nil, err
		}
		if chunk.Id == 0 {
			chunk.Id = core.IDFromContent(chunk.Text)
		}
	}

	var added []*core.Chunk
	err := retry.WithBackoff(ctx, func() error {
		added = added[:0]
		err := r.backend.WithTx(func(tx *badger.Txn) error {
			now := time.Now().UTC()
			for _, chunk := range chunks {
				key := makeChunkKey(chunk.Id)
				_, err := tx.Get(key)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrKeyNotFound) {
					return err
				}

				chunk.InsertedAt = now
				if err := tx.Set(key, storage.MarshalChunk(chunk)); err != nil {
					return err
				}
				added = append(added, chunk)
			}
			return tx.Commit()
		}, true)
		if err != nil && !errors.Is(err, badger.ErrConflict) {
			return retry.Permanent(err)
		}
		return err
	}, conflictRetries, conflictDelay)
	if err != nil {
		return nil, err
	}

	return added, nil
}

// GetChunk retrieves a single chunk by ID.
func (r *ChunkRepository) GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error) {
	var result *core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readChunk(tx, makeChunkKey(id))
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetChunks retrieves multiple chunks by their IDs.
func (r *ChunkRepository) GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error) {
	var result []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		for _, id := range ids {
			chunk, err := r.readChunk(tx, makeChunkKey(id))
			if err != nil {
				return err
			}
			if chunk != nil {
				result = append(result, chunk)
			}
		}
		return nil
	}, false)
	return result, err
}

// ListChunks returns up to limit chunks with IDs greater than after, in ID order.
func (r *ChunkRepository) ListChunks(ctx context.Context, after core.ID, limit int) ([]*core.Chunk, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}

	var results []*core.Chunk
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(makeChunkKey(after)); iter.Valid() && len(results) < limit; iter.Next() {
			item := iter.Item()
			id, ok := chunkIDFromKey(item.Key())
			if !ok || id == after {
				continue
			}

			var chunk *core.Chunk
			if err := item.Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			}); err != nil {
				return err
			}
			results = append(results, chunk)
		}
		return nil
	}, false)
	return results, err
}

// UpdateVectors replaces the vectors of existing chunks.
func (r *ChunkRepository) UpdateVectors(ctx context.Context, chunks ...*core.Chunk) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			key := makeChunkKey(chunk.Id)
			stored, err := r.readChunk(tx, key)
			if err != nil {
				return err
			}
			if stored == nil {
				return fmt.Errorf("%w: chunk %d", storage.ErrNotFound, chunk.Id)
			}

			stored.Vector = chunk.Vector
			if err := tx.Set(key, storage.MarshalChunk(stored)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// CountChunks returns the number of stored chunks.
func (r *ChunkRepository) CountChunks(ctx context.Context) (int, error) {
	count := 0
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	return count, err
}

// readChunk reads a chunk by key. Returns nil without error when the key is absent.
func (r *ChunkRepository) readChunk(tx *badger.Txn, key []byte) (*core.Chunk, error) {
	item, err := tx.Get(key)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var chunk *core.Chunk
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		chunk, unmarshalErr = storage.UnmarshalChunk(val)
		return unmarshalErr
	})
	return chunk, err
}
