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


// Package storage defines the persistence layer for quarry.
//
// ChunkRepository stores page fragments with their embeddings and answers
// vector similarity queries. The BadgerDB implementation lives in the badger
// subpackage.
//
// VectorStore is the text-level view used by research sessions: it embeds
// inserted text and searches by query string. EmbeddingStore implements it
// over any ChunkRepository.
//
// # Usage
//
//	backend, err := badger.OpenBackend("/path/to/db", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
//	repo, _ := badger.NewChunkRepository(backend)
//	store, _ := storage.NewEmbeddingStore(repo, provider.Embedder(), 0, logger)
//
// Use in tests with in-memory storage:
//
//	repo, backend, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines. Concurrent inserts of the
// same content are resolved by the store: the first write wins and later
// ones are skipped.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
