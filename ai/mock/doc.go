// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.Oracle and
// ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	oracle := mock.NewMockOracle()
//	oracle.EvaluateAnswerFunc = func(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.EvaluationResult, error) {
//	    return &core.EvaluationResult{Rating: core.RatingUnsatisfactory, NextStep: core.StepWebSearch}, nil
//	}
//
//	count := oracle.CallCount("EvaluateAnswer")
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors based on text hash
//   - NewBagOfWordsEmbedder: Vectors where shared words mean similarity
//   - MockOracle: Plans one query, answers, and finishes on the first evaluation
//   - MockProvider: Aggregates mock embedder and oracle
//
// All mocks are safe for concurrent use.
package mock
