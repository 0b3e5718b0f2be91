package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for stored entities.
// It is generated using content-based hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// Identical content always produces identical IDs, which is what the store and
// the session use as content identity.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Metadata keys shared by search results, fetched pages and stored chunks.
const (
	MetaSource        = "source"
	MetaLink          = "link"
	MetaTitle         = "title"
	MetaDate          = "date"
	MetaSnippet       = "snippet"
	MetaQueryID       = "query_id"
	MetaReliability   = "source_reliability"
	MetaHeaders       = "headers"
	MetaChunkPosition = "chunk_position"
)

// Role identifies the author of a conversation message.
type Role int

const (
	// RoleUser is the person asking the question, or feedback injected on their behalf.
	RoleUser Role = iota + 1
	// RoleAssistant is a generated answer or refusal.
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return "unknown"
	}
}

// Message is a single entry of a session's conversation history.
type Message struct {
	Role    Role
	Content string
}

// SearchQuery is a web search query planned by the oracle.
type SearchQuery struct {
	ID       int
	Text     string
	Executed bool
}

// SourceRecord tracks one URL surfaced by search or crawling.
type SourceRecord struct {
	URL string
	// QueryID is nil for links discovered while crawling evidence.
	QueryID     *int
	Fetched     bool
	Persisted   bool
	Reliability float64
	Metadata    map[string]string
}

// Page is the text content of one fetched URL.
type Page struct {
	URL      string
	Text     string
	Metadata map[string]string
}

// ContentChunk is one piece of a page produced by hierarchical splitting.
type ContentChunk struct {
	HeaderPath []string
	Text       string
	Position   int
}

// ChunkGroup holds every chunk that shares a heading path, in page order.
type ChunkGroup struct {
	HeaderPath []string
	Chunks     []ContentChunk
}

// Chunk is a persisted fragment of page text with its embedding.
type Chunk struct {
	Id         ID
	Text       string
	Metadata   map[string]string
	Vector     []float32
	InsertedAt time.Time
}

// SearchResult is a stored chunk matched by vector similarity.
type SearchResult struct {
	Record *Chunk
	Score  float32
}

// RetrievedDocument is a piece of evidence selected for answer generation.
type RetrievedDocument struct {
	Text     string
	Metadata map[string]string
	Score    float32
}

// ContentID returns the document's content identity.
func (d RetrievedDocument) ContentID() ID {
	return IDFromContent(d.Text)
}

// Source returns the name of the site the document came from.
func (d RetrievedDocument) Source() string {
	return d.Metadata[MetaSource]
}

// URL returns the page the document was extracted from.
func (d RetrievedDocument) URL() string {
	return d.Metadata[MetaLink]
}

// Reliability returns the source reliability score, or the default when unknown.
func (d RetrievedDocument) Reliability() float64 {
	r, err := strconv.ParseFloat(d.Metadata[MetaReliability], 64)
	if err != nil {
		return DefaultReliability
	}
	return r
}

// DefaultReliability is assigned to sources with no positive or negative signals.
const DefaultReliability = 0.5

// TargetTerms are the entities and keywords a page must relate to in order to be kept.
type TargetTerms struct {
	Entities []string
	Keywords []string
}

// Empty reports whether there is nothing to match against.
func (t TargetTerms) Empty() bool {
	return len(t.Entities) == 0 && len(t.Keywords) == 0
}

// QueryAnalysis is the oracle's judgment of an incoming question.
type QueryAnalysis struct {
	Keywords     []string
	Entities     []string
	Complexity   Complexity
	MultiFaceted bool
	IsHarmful    bool
}

// Targets returns the analysis terms used by the relevance filter.
func (a *QueryAnalysis) Targets() TargetTerms {
	return TargetTerms{Entities: a.Entities, Keywords: a.Keywords}
}

// Answer is a generated response to the user's question.
type Answer struct {
	Response         string
	GapsAcknowledged string
}

// EvaluationResult is the oracle's verdict on an answer and where to go next.
type EvaluationResult struct {
	Evaluation string
	Rating     Rating
	Rationale  string
	NextStep   NextStep
}

// DBQuery is one similarity query planned against the vector store.
type DBQuery struct {
	Query       string
	ResultCount int
}
