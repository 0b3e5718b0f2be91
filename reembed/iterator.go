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

	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

const (
	// DefaultBatchSize is the default number of chunks to fetch in each batch
	DefaultBatchSize = 100
)

// ChunkIterator pages through every stored chunk in key order.
type ChunkIterator struct {
	repo      storage.ChunkRepository
	batchSize int
}

// NewChunkIterator creates a new chunk iterator.
// batchSize: number of chunks to fetch in each batch (must be > 0)
func NewChunkIterator(repo storage.ChunkRepository, batchSize int) *ChunkIterator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &ChunkIterator{
		repo:      repo,
		batchSize: batchSize,
	}
}

// ForEach calls fn with each page of chunks until the store is exhausted.
// Iteration stops on the first error from fn. Only one page is held in
// memory at a time.
func (it *ChunkIterator) ForEach(ctx context.Context, fn func([]*core.Chunk) error) error {
	var after core.ID
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := it.repo.ListChunks(ctx, after, it.batchSize)
		if err != nil {
			return err
		}
		if len(page) == 0 {
			return nil
		}
		after = page[len(page)-1].Id

		if err := fn(page); err != nil {
			return err
		}
		if len(page) < it.batchSize {
			return nil
		}
	}
}
