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


package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of chunks embedded per request
	BatchSize int

	// ReportInterval is how often to report progress (number of chunks)
	ReportInterval int

	// MaxRetries is the maximum number of attempts per embedding request
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
	}
}

// Reembedder re-embeds every chunk in a repository.
type Reembedder struct {
	repo      storage.ChunkRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *ChunkIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(repo storage.ChunkRepository, embedder ai.Embedder, config *Config, progress io.Writer) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if progress == nil {
		progress = io.Discard
	}

	return &Reembedder{
		repo:      repo,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(repo, embedder, config.MaxRetries, config.RetryDelay),
		iterator:  NewChunkIterator(repo, config.BatchSize),
		logger:    slog.Default().With("component", "reembed"),
	}
}

// Run re-embeds all chunks and returns the number processed.
func (r *Reembedder) Run(ctx context.Context) (int, error) {
	total, err := r.repo.CountChunks(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	if total == 0 {
		fmt.Fprintf(r.progress, "No chunks found in store\n")
		return 0, nil
	}

	fmt.Fprintf(r.progress, "Starting reembedding of %s chunks (batch size: %d)\n", humanize.Comma(int64(total)), r.iterator.batchSize)

	tracker := NewProgressTracker(r.progress, total, r.config.ReportInterval)
	tracker.Start()

	processed := 0
	err = r.iterator.ForEach(ctx, func(chunks []*core.Chunk) error {
		if err := r.processor.Process(ctx, chunks); err != nil {
			return fmt.Errorf("failed to process batch after chunk %d: %w", chunks[0].Id, err)
		}
		processed += len(chunks)
		tracker.Add(len(chunks))
		return nil
	})
	if err != nil {
		r.logger.Error("reembedding stopped", "processed", processed, "err", err)
		return processed, err
	}

	tracker.Finish()

	elapsed := tracker.Elapsed()
	fmt.Fprintf(r.progress, "Reembedding complete. Processed %s chunks in %v\n",
		humanize.Comma(int64(processed)), elapsed.Round(time.Millisecond))

	return processed, nil
}
