package badger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

func newTestRepo(t *testing.T) *ChunkRepository {
	t.Helper()
	repo, backend, err := NewMemoryStore()
	if err != nil {
		t.Fatalf("Failed to create repository: %v", err)
	}
	t.Cleanup(func() {
		repo.Close()
		backend.Close()
	})
	return repo
}

func TestChunkBasics(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	chunk := &core.Chunk{
		Text:     "Season 5 premieres in November.",
		Metadata: map[string]string{core.MetaLink: "https://example.com/st5"},
		Vector:   []float32{1, 0},
	}

	added, err := repo.AddChunks(ctx, chunk)
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}
	if len(added) != 1 {
		t.Fatalf("Expected 1 chunk, got %d", len(added))
	}
	if added[0].Id != core.IDFromContent(chunk.Text) {
		t.Fatalf("Expected content-derived ID, got %d", added[0].Id)
	}
	if added[0].InsertedAt.IsZero() {
		t.Fatal("Expected insertion time to be set")
	}

	retrieved, err := repo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if retrieved.Text != chunk.Text {
		t.Fatalf("Expected %q, got %q", chunk.Text, retrieved.Text)
	}
	if retrieved.Metadata[core.MetaLink] != "https://example.com/st5" {
		t.Fatalf("Expected link metadata, got %v", retrieved.Metadata)
	}
}

func TestAddChunks_SkipsDuplicates(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := &core.Chunk{Text: "same text", Vector: []float32{1, 0}}
	if _, err := repo.AddChunks(ctx, first); err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	again := &core.Chunk{Text: "same text", Vector: []float32{0, 1}}
	inBatch := &core.Chunk{Text: "other text", Vector: []float32{0, 1}}
	inBatchCopy := &core.Chunk{Text: "other text", Vector: []float32{0, 1}}
	added, err := repo.AddChunks(ctx, again, inBatch, inBatchCopy)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}
	if len(added) != 1 || added[0].Text != "other text" {
		t.Fatalf("Expected only the new chunk to be written, got %d", len(added))
	}

	count, err := repo.CountChunks(ctx)
	if err != nil {
		t.Fatalf("Failed to count chunks: %v", err)
	}
	if count != 2 {
		t.Fatalf("Expected 2 chunks, got %d", count)
	}

	stored, err := repo.GetChunk(ctx, core.IDFromContent("same text"))
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if stored.Vector[0] != 1 {
		t.Fatal("Expected the original vector to be kept")
	}
}

func TestAddChunks_Validation(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.AddChunks(context.Background(), &core.Chunk{Text: "  ", Vector: []float32{1}})
	if !errors.Is(err, core.ErrInvalidChunk) {
		t.Fatalf("Expected ErrInvalidChunk, got %v", err)
	}

	_, err = repo.AddChunks(context.Background(), &core.Chunk{Text: "no vector"})
	if !errors.Is(err, core.ErrInvalidChunk) {
		t.Fatalf("Expected ErrInvalidChunk, got %v", err)
	}
}

func TestAddChunks_Concurrent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				chunk := &core.Chunk{Text: fmt.Sprintf("shared chunk %d", i), Vector: []float32{1, 0}}
				if _, err := repo.AddChunks(ctx, chunk); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("Concurrent insert failed: %v", err)
	}

	count, err := repo.CountChunks(ctx)
	if err != nil {
		t.Fatalf("Failed to count chunks: %v", err)
	}
	if count != 20 {
		t.Fatalf("Expected 20 chunks, got %d", count)
	}
}

func TestGetChunk_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	_, err := repo.GetChunk(context.Background(), core.ID(42))
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestGetChunks_SkipsMissing(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddChunks(ctx,
		&core.Chunk{Text: "one", Vector: []float32{1}},
		&core.Chunk{Text: "two", Vector: []float32{1}},
	)
	if err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	chunks, err := repo.GetChunks(ctx, added[0].Id, core.ID(7), added[1].Id)
	if err != nil {
		t.Fatalf("Failed to get chunks: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("Expected 2 chunks, got %d", len(chunks))
	}
}

func TestListChunks_Pagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		if _, err := repo.AddChunks(ctx, &core.Chunk{Text: fmt.Sprintf("chunk %d", i), Vector: []float32{1}}); err != nil {
			t.Fatalf("Failed to add chunk: %v", err)
		}
	}

	seen := make(map[core.ID]bool)
	var after core.ID
	pages := 0
	for {
		page, err := repo.ListChunks(ctx, after, 3)
		if err != nil {
			t.Fatalf("Failed to list chunks: %v", err)
		}
		if len(page) == 0 {
			break
		}
		pages++
		for _, c := range page {
			if seen[c.Id] {
				t.Fatalf("Chunk %d listed twice", c.Id)
			}
			if c.Id <= after {
				t.Fatalf("Chunk %d listed out of order after %d", c.Id, after)
			}
			seen[c.Id] = true
			after = c.Id
		}
	}

	if len(seen) != 7 {
		t.Fatalf("Expected 7 chunks, got %d", len(seen))
	}
	if pages != 3 {
		t.Fatalf("Expected 3 pages, got %d", pages)
	}

	if _, err := repo.ListChunks(ctx, 0, 0); !errors.Is(err, storage.ErrInvalidQuery) {
		t.Fatalf("Expected ErrInvalidQuery, got %v", err)
	}
}

func TestUpdateVectors(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	added, err := repo.AddChunks(ctx, &core.Chunk{
		Text:     "fragment",
		Metadata: map[string]string{core.MetaSource: "example.com"},
		Vector:   []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	update := &core.Chunk{Id: added[0].Id, Vector: []float32{0, 1}}
	if err := repo.UpdateVectors(ctx, update); err != nil {
		t.Fatalf("Failed to update vectors: %v", err)
	}

	stored, err := repo.GetChunk(ctx, added[0].Id)
	if err != nil {
		t.Fatalf("Failed to get chunk: %v", err)
	}
	if stored.Vector[1] != 1 {
		t.Fatalf("Expected updated vector, got %v", stored.Vector)
	}
	if stored.Text != "fragment" || stored.Metadata[core.MetaSource] != "example.com" {
		t.Fatal("Expected text and metadata to be preserved")
	}

	err = repo.UpdateVectors(ctx, &core.Chunk{Id: core.ID(99), Vector: []float32{1}})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}
