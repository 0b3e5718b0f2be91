package ai

import (
	"context"

	"github.com/poiesic/quarry/core"
)

type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Oracle is the reasoning model that makes every typed judgment in a session.
// Implementations return *core.OracleError for any failure, including
// responses that cannot be parsed into the expected result.
type Oracle interface {
	// AnalyzeQuery extracts keywords and entities from a question and
	// flags harmful requests.
	AnalyzeQuery(ctx context.Context, query string) (*core.QueryAnalysis, error)

	// RefineQuery rewrites the last user message of a conversation into a
	// standalone question.
	RefineQuery(ctx context.Context, history []core.Message) (string, error)

	// PlanSearchQueries proposes web search queries. Prior queries and the
	// latest evaluation rationale steer later rounds towards missing information.
	// Returned queries carry the oracle's ids and are not yet executed.
	PlanSearchQueries(ctx context.Context, query string, prior []core.SearchQuery, rationale string) ([]core.SearchQuery, error)

	// GenerateAnswer writes an answer from the evidence and the conversation so far.
	GenerateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.Answer, error)

	// EvaluateAnswer judges the latest answer and proposes the next step.
	EvaluateAnswer(ctx context.Context, evidence []core.RetrievedDocument, history []core.Message) (*core.EvaluationResult, error)

	// ExtractLinks returns URLs mentioned in the evidence that are worth following.
	ExtractLinks(ctx context.Context, evidence []core.RetrievedDocument, recent []core.Message) ([]string, error)

	// PlanDBQueries turns an information need into similarity queries against the store.
	PlanDBQueries(ctx context.Context, need string) ([]core.DBQuery, error)
}

type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Oracle returns the reasoning service.
	// The returned Oracle is safe for concurrent use.
	Oracle() Oracle

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
