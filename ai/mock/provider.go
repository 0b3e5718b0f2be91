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


package mock

import (
	"sync/atomic"

	"github.com/poiesic/quarry/ai"
)

// MockProvider is a test double for ai.AIProvider that hands out a mock
// embedder and oracle and records whether it was closed.
type MockProvider struct {
	embedder *MockEmbedder
	oracle   *MockOracle
	closed   atomic.Bool

	// CloseErr is returned by Close when set.
	CloseErr error
}

// NewMockProvider returns a provider with a hashing embedder and a default oracle.
func NewMockProvider() ai.AIProvider {
	return NewMockProviderWithServices(NewMockEmbedder(), NewMockOracle())
}

// NewMockProviderWithServices returns a provider around the given doubles.
// Nil services are replaced with defaults.
func NewMockProviderWithServices(embedder *MockEmbedder, oracle *MockOracle) ai.AIProvider {
	if embedder == nil {
		embedder = NewMockEmbedder()
	}
	if oracle == nil {
		oracle = NewMockOracle()
	}
	return &MockProvider{embedder: embedder, oracle: oracle}
}

func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *MockProvider) Oracle() ai.Oracle {
	return p.oracle
}

func (p *MockProvider) Close() error {
	p.closed.Store(true)
	return p.CloseErr
}

// Closed reports whether Close was called.
func (p *MockProvider) Closed() bool {
	return p.closed.Load()
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockOracle returns the underlying mock oracle for test assertions.
func (p *MockProvider) GetMockOracle() *MockOracle {
	return p.oracle
}
