package orchestrator

import "errors"

var (
	// ErrOracleRequired is returned when an oracle is not provided.
	ErrOracleRequired = errors.New("oracle required")

	// ErrSearchProviderRequired is returned when a search provider is not provided.
	ErrSearchProviderRequired = errors.New("search provider required")

	// ErrPipelineRequired is returned when an ingestion pipeline is not provided.
	ErrPipelineRequired = errors.New("ingestion pipeline required")

	// ErrRankerRequired is returned when a retrieval ranker is not provided.
	ErrRankerRequired = errors.New("retrieval ranker required")
)
