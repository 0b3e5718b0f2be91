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


// Package ai provides abstractions for the model services used by quarry.
//
// Two services are involved in every research session:
//
//   - Embedder: Generates vector embeddings from text. Used by the vector
//     store, the relevance filter and the embedding-based reranker.
//   - Oracle: The reasoning model. Every judgment a session makes (query
//     analysis, search planning, answer generation, answer evaluation,
//     link extraction, store query planning) is a typed Oracle call.
//   - AIProvider: Aggregates both for convenient initialization.
//
// # Implementation Packages
//
//   - ai/openai: Production implementation using OpenAI-compatible APIs
//   - ai/mock: Test doubles for unit testing without external dependencies
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewOracle, etc.) return
// INTERFACE types. Mock constructors return CONCRETE types so tests can
// inject behavior and inspect call counts:
//
//	oracle := mock.NewMockOracle()
//	oracle.EvaluateAnswerFunc = func(...) (*core.EvaluationResult, error) { ... }
//	count := oracle.CallCount("EvaluateAnswer")
//
// # Failure Semantics
//
// An Oracle call either returns a fully typed result or a *core.OracleError.
// There is no automatic retry: a response that does not parse is reported
// with core.ErrMalformedResponse and the caller decides what to do.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	analysis, err := provider.Oracle().AnalyzeQuery(ctx, "Stranger Things latest season")
package ai
