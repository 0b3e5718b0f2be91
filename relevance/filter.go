package relevance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/poiesic/quarry/ai"
	"github.com/poiesic/quarry/core"
	"github.com/poiesic/quarry/storage"
)

// Default filter parameters.
const (
	DefaultHeaderThreshold = 0.3
	DefaultChunkThreshold  = 0.3
	DefaultTopKeyphrases   = 5
	DefaultMaxCandidates   = 200
)

// HeaderSeparator joins a heading path in persisted metadata.
const HeaderSeparator = " > "

// ErrEmbedderRequired is returned when a filter is created without an embedder.
var ErrEmbedderRequired = errors.New("embedder required")

// TermSet is a list of target terms with their embeddings.
type TermSet struct {
	Terms   []string
	vectors [][]float32
	seed    []float32
	minN    int
	maxN    int
}

// Len returns the number of terms.
func (t *TermSet) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Terms)
}

// Targets are the embedded entities and keywords of a session's question.
type Targets struct {
	Entities *TermSet
	Keywords *TermSet
}

// Empty reports whether there is nothing to match against.
func (t *Targets) Empty() bool {
	return t == nil || (t.Entities.Len() == 0 && t.Keywords.Len() == 0)
}

// Filter decides which parts of a page are relevant enough to persist.
//
// A page is split into groups of chunks sharing a heading path. A group is
// accepted whole when its heading path matches the targets at the header
// threshold. Otherwise its chunks are tested at the chunk threshold and the
// first matching chunk accepts the whole group.
type Filter struct {
	embedder        ai.Embedder
	splitter        *Splitter
	entities        EntityExtractor
	headerThreshold float32
	chunkThreshold  float32
	topN            int
	maxCandidates   int
	logger          *slog.Logger
}

// Option configures a Filter.
type Option func(*Filter) error

// WithThresholds sets the header and chunk similarity thresholds.
func WithThresholds(header, chunk float32) Option {
	return func(f *Filter) error {
		if header < -1 || header > 1 || chunk < -1 || chunk > 1 {
			return fmt.Errorf("thresholds must be in [-1, 1], got %v and %v", header, chunk)
		}
		f.headerThreshold = header
		f.chunkThreshold = chunk
		return nil
	}
}

// WithChunking sets the chunk size and overlap used to split pages.
func WithChunking(size, overlap int) Option {
	return func(f *Filter) error {
		s, err := NewSplitter(size, overlap)
		if err != nil {
			return err
		}
		f.splitter = s
		return nil
	}
}

// WithEntityExtractor replaces the default prose entity extractor.
func WithEntityExtractor(e EntityExtractor) Option {
	return func(f *Filter) error {
		if e == nil {
			return errors.New("entity extractor is nil")
		}
		f.entities = e
		return nil
	}
}

// WithKeyphrases sets how many keyphrases are kept per text and how many
// candidate n-grams are considered.
func WithKeyphrases(topN, maxCandidates int) Option {
	return func(f *Filter) error {
		if topN < 1 || maxCandidates < topN {
			return fmt.Errorf("invalid keyphrase limits %d/%d", topN, maxCandidates)
		}
		f.topN = topN
		f.maxCandidates = maxCandidates
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) error {
		if logger == nil {
			logger = slog.Default()
		}
		f.logger = logger
		return nil
	}
}

// NewFilter creates a relevance filter.
func NewFilter(embedder ai.Embedder, opts ...Option) (*Filter, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	splitter, err := NewSplitter(DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		return nil, err
	}

	f := &Filter{
		embedder:        embedder,
		splitter:        splitter,
		entities:        ProseEntities{},
		headerThreshold: DefaultHeaderThreshold,
		chunkThreshold:  DefaultChunkThreshold,
		topN:            DefaultTopKeyphrases,
		maxCandidates:   DefaultMaxCandidates,
		logger:          slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	f.logger = f.logger.With("component", "relevance")

	return f, nil
}

// Prepare embeds the target terms once so they can be reused for every page
// of a session.
func (f *Filter) Prepare(ctx context.Context, terms core.TargetTerms) (*Targets, error) {
	entities, err := f.prepareSet(ctx, terms.Entities)
	if err != nil {
		return nil, err
	}
	keywords, err := f.prepareSet(ctx, terms.Keywords)
	if err != nil {
		return nil, err
	}
	return &Targets{Entities: entities, Keywords: keywords}, nil
}

func (f *Filter) prepareSet(ctx context.Context, raw []string) (*TermSet, error) {
	set := &TermSet{}
	for _, term := range raw {
		if t := strings.TrimSpace(term); t != "" {
			set.Terms = append(set.Terms, t)
		}
	}
	if len(set.Terms) == 0 {
		return set, nil
	}

	vectors, err := f.embedder.EmbedTexts(ctx, set.Terms)
	if err != nil {
		return nil, fmt.Errorf("embedding target terms: %w", err)
	}
	if len(vectors) != len(set.Terms) {
		return nil, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(set.Terms), len(vectors))
	}
	set.vectors = vectors
	set.seed = meanVector(vectors)

	set.minN, set.maxN = tokenCount(set.Terms[0]), tokenCount(set.Terms[0])
	for _, t := range set.Terms[1:] {
		n := tokenCount(t)
		set.minN = min(set.minN, n)
		set.maxN = max(set.maxN, n)
	}
	return set, nil
}

// HasSemanticMatch reports whether any term extracted from text (named
// entities and keyphrases seeded by the targets) is more similar than
// threshold to any target term. Empty text or targets never match.
func (f *Filter) HasSemanticMatch(ctx context.Context, targets *TermSet, text string, threshold float32) (bool, error) {
	if targets.Len() == 0 || strings.TrimSpace(text) == "" {
		return false, nil
	}
	return f.matchTerms(ctx, targets, text, f.entities.Entities(text), threshold)
}

// matchTerms is HasSemanticMatch with the text's entities already extracted.
func (f *Filter) matchTerms(ctx context.Context, targets *TermSet, text string, entities []string, threshold float32) (bool, error) {
	if targets.Len() == 0 {
		return false, nil
	}

	candidates := ngramCandidates(text, targets.minN, targets.maxN, f.maxCandidates)
	if len(entities) == 0 && len(candidates) == 0 {
		return false, nil
	}

	inputs := make([]string, 0, 1+len(candidates)+len(entities))
	inputs = append(inputs, text)
	inputs = append(inputs, candidates...)
	inputs = append(inputs, entities...)

	vectors, err := f.embedder.EmbedTexts(ctx, inputs)
	if err != nil {
		return false, fmt.Errorf("embedding text terms: %w", err)
	}
	if len(vectors) != len(inputs) {
		return false, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(inputs), len(vectors))
	}

	candidateVecs := vectors[1 : 1+len(candidates)]
	terms := f.topKeyphrases(seededDocVector(vectors[0], targets.seed), candidateVecs)
	terms = append(terms, vectors[1+len(candidates):]...)

	for _, target := range targets.vectors {
		for _, term := range terms {
			if core.CosineSimilarity(target, term) > threshold {
				return true, nil
			}
		}
	}
	return false, nil
}

// matches tests text against both the entity and keyword targets. Entities
// are extracted from text once for both.
func (f *Filter) matches(ctx context.Context, targets *Targets, text string, threshold float32) (bool, error) {
	if targets.Empty() || strings.TrimSpace(text) == "" {
		return false, nil
	}

	entities := f.entities.Entities(text)
	ok, err := f.matchTerms(ctx, targets.Entities, text, entities, threshold)
	if err != nil || ok {
		return ok, err
	}
	return f.matchTerms(ctx, targets.Keywords, text, entities, threshold)
}

// Select returns the groups of a page that are relevant to the targets.
func (f *Filter) Select(ctx context.Context, targets *Targets, groups []core.ChunkGroup) ([]core.ChunkGroup, error) {
	if targets.Empty() {
		return nil, nil
	}

	var accepted []core.ChunkGroup
	for _, group := range groups {
		if len(group.HeaderPath) > 0 {
			ok, err := f.matches(ctx, targets, strings.Join(group.HeaderPath, HeaderSeparator), f.headerThreshold)
			if err != nil {
				return nil, err
			}
			if ok {
				accepted = append(accepted, group)
				continue
			}
		}

		for _, chunk := range group.Chunks {
			ok, err := f.matches(ctx, targets, chunk.Text, f.chunkThreshold)
			if err != nil {
				return nil, err
			}
			if ok {
				accepted = append(accepted, group)
				break
			}
		}
	}
	return accepted, nil
}

// FilterAndPersist splits a page, selects its relevant groups and inserts
// their chunks into the store. Returns the number of chunks submitted.
func (f *Filter) FilterAndPersist(ctx context.Context, targets *Targets, page *core.Page, store storage.VectorStore) (int, error) {
	groups, err := f.splitter.Split(page.Text)
	if err != nil {
		return 0, fmt.Errorf("splitting %s: %w", page.URL, err)
	}

	accepted, err := f.Select(ctx, targets, groups)
	if err != nil {
		return 0, err
	}

	var (
		texts []string
		metas []map[string]string
	)
	for _, group := range accepted {
		headers := strings.Join(group.HeaderPath, HeaderSeparator)
		for _, chunk := range group.Chunks {
			meta := maps.Clone(page.Metadata)
			if meta == nil {
				meta = make(map[string]string)
			}
			meta[core.MetaChunkPosition] = strconv.Itoa(chunk.Position)
			meta[core.MetaHeaders] = headers
			texts = append(texts, chunk.Text)
			metas = append(metas, meta)
		}
	}

	f.logger.Debug("filtered page", "url", page.URL, "groups", len(groups), "accepted", len(accepted), "chunks", len(texts))
	if len(texts) == 0 {
		return 0, nil
	}

	if err := store.Insert(ctx, texts, metas); err != nil {
		return 0, fmt.Errorf("persisting %s: %w", page.URL, err)
	}
	return len(texts), nil
}

// topKeyphrases returns the vectors of the topN candidates closest to doc.
func (f *Filter) topKeyphrases(doc []float32, candidates [][]float32) [][]float32 {
	type scored struct {
		idx   int
		score float32
	}
	ranked := make([]scored, len(candidates))
	for i, c := range candidates {
		ranked[i] = scored{idx: i, score: core.CosineSimilarity(doc, c)}
	}
	slices.SortStableFunc(ranked, func(a, b scored) int {
		switch {
		case a.score > b.score:
			return -1
		case a.score < b.score:
			return 1
		default:
			return 0
		}
	})

	n := min(f.topN, len(ranked))
	out := make([][]float32, 0, n)
	for _, r := range ranked[:n] {
		out = append(out, candidates[r.idx])
	}
	return out
}

// seededDocVector weights the document embedding 3:1 against the mean target
// embedding so keyphrases lean towards the targets.
func seededDocVector(doc, seed []float32) []float32 {
	if len(seed) != len(doc) {
		return doc
	}
	out := make([]float32, len(doc))
	for i := range doc {
		out[i] = (3*doc[i] + seed[i]) / 4
	}
	return out
}

func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	mean := make([]float32, len(vectors[0]))
	for _, v := range vectors {
		for i := range mean {
			if i < len(v) {
				mean[i] += v[i]
			}
		}
	}
	for i := range mean {
		mean[i] /= float32(len(vectors))
	}
	return mean
}
