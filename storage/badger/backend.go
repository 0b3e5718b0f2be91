package badger

import (
	"container/heap"
	"context"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Backend owns the BadgerDB handle shared by the repositories.
type Backend struct {
	db     *badger.DB
	logger *slog.Logger
}

// slogAdapter routes badger's printf logging into slog. Badger's info
// output is compaction chatter, so it is logged at debug.
type slogAdapter struct {
	logger *slog.Logger
}

var _ badger.Logger = (*slogAdapter)(nil)

func (a *slogAdapter) Errorf(msg string, items ...any) {
	a.logger.Error(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Warningf(msg string, items ...any) {
	a.logger.Warn(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Infof(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

func (a *slogAdapter) Debugf(msg string, items ...any) {
	a.logger.Debug(fmt.Sprintf(msg, items...))
}

// OpenBackend opens the store directory at dir, creating it when missing.
// With inMemory set, dir is ignored and nothing touches disk.
func OpenBackend(dir string, inMemory bool) (*Backend, error) {
	logger := slog.Default().With("component", "badger")

	var opts badger.Options
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := ensureDir(dir); err != nil {
			return nil, err
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &slogAdapter{logger: logger}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	logger.Debug("store opened", "dir", dir, "in_memory", inMemory)
	return &Backend{db: db, logger: logger}, nil
}

func ensureDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("store directory required")
	}
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	return nil
}

func (b *Backend) Close() error {
	return b.db.Close()
}

// IsClosed reports whether Close has been called.
func (b *Backend) IsClosed() bool {
	return b.db.IsClosed()
}

// WithTx runs fn in a transaction that is always discarded afterwards;
// fn must commit write transactions itself.
func (b *Backend) WithTx(fn func(tx *badger.Txn) error, isWrite bool) error {
	tx := b.db.NewTransaction(isWrite)
	defer tx.Discard()
	return fn(tx)
}

// WithTransaction implements storage.Repository.
func (b *Backend) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return b.WithTx(func(tx *badger.Txn) error {
		if err := fn(ctx); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// FindSimilar scans every stored chunk and keeps the best limit matches at
// or above minSimilarity. Stored vectors are unit length, so the dot product
// is the cosine similarity. Chunks embedded with a different dimension than
// vector, as left behind by a model change before reembedding, are skipped.
// A limit of zero or less returns every match.
func (b *Backend) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	top := &topK{limit: limit}
	skipped := 0

	err := b.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(chunkPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		seq := 0
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var chunk *core.Chunk
			err := iter.Item().Value(func(val []byte) error {
				var err error
				chunk, err = storage.UnmarshalChunk(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(chunk.Vector) != len(vector) {
				skipped++
				continue
			}

			score := core.DotProduct(vector, chunk.Vector)
			if score >= minSimilarity {
				top.offer(ranked{result: &core.SearchResult{Record: chunk, Score: score}, seq: seq})
			}
			seq++
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	if skipped > 0 {
		b.logger.Warn("skipped chunks with mismatched vector dimension", "count", skipped, "dimension", len(vector))
	}
	return top.results(), nil
}

// ranked is a match with its position in key order, which breaks score ties.
type ranked struct {
	result *core.SearchResult
	seq    int
}

// better reports whether a ranks ahead of b.
func (a ranked) better(b ranked) bool {
	if a.result.Score != b.result.Score {
		return a.result.Score > b.result.Score
	}
	return a.seq < b.seq
}

// topK keeps the best limit matches in a heap whose root is the worst kept.
type topK struct {
	limit int
	items []ranked
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return t.items[j].better(t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(ranked)) }

func (t *topK) Pop() any {
	last := t.items[len(t.items)-1]
	t.items = t.items[:len(t.items)-1]
	return last
}

func (t *topK) offer(r ranked) {
	if t.limit <= 0 || len(t.items) < t.limit {
		heap.Push(t, r)
		return
	}
	if r.better(t.items[0]) {
		t.items[0] = r
		heap.Fix(t, 0)
	}
}

func (t *topK) results() []*core.SearchResult {
	slices.SortFunc(t.items, func(a, b ranked) int {
		if a.better(b) {
			return -1
		}
		if b.better(a) {
			return 1
		}
		return 0
	})
	out := make([]*core.SearchResult, len(t.items))
	for i, r := range t.items {
		out[i] = r.result
	}
	return out
}
