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


package openai

import (
	"fmt"
	"log/slog"

	"github.com/poiesic/quarry/ai"
)

// Provider bundles the embedder and oracle of one OpenAI-compatible
// deployment. The two may live on different hosts.
type Provider struct {
	embedder *Embedder
	oracle   *Oracle
	logger   *slog.Logger
}

var _ ai.AIProvider = (*Provider)(nil)

// NewProvider validates config and builds both services from it.
func NewProvider(config *ai.Config) (ai.AIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, fmt.Errorf("embedder: %w", err)
	}
	oracle, err := newOracle(config)
	if err != nil {
		return nil, fmt.Errorf("oracle: %w", err)
	}

	logger := slog.Default().With("component", "openai-provider")
	logger.Debug("AI provider ready",
		"embedding_host", config.EmbeddingHost,
		"embedding_model", config.EmbeddingModel,
		"oracle_host", config.OracleHost,
		"oracle_model", config.OracleModel)

	return &Provider{embedder: embedder, oracle: oracle, logger: logger}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) Oracle() ai.Oracle {
	return p.oracle
}

// Close is a no-op; the HTTP clients hold no resources that need releasing.
func (p *Provider) Close() error {
	p.logger.Debug("closing AI provider")
	return nil
}
