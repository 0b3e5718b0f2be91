package mock

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"unicode"

	"github.com/poiesic/quarry/core"
)

// Dimension is the length of hashed vectors from NewMockEmbedder.
const Dimension = 384

// MockEmbedder implements ai.Embedder without a model. Set EmbedTextFunc or
// EmbedTextsFunc to override its output; EmbedTexts falls back to
// EmbedTextFunc per text when only the single form is set.
type MockEmbedder struct {
	EmbedTextFunc  func(ctx context.Context, text string) ([]float32, error)
	EmbedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)

	mu        sync.Mutex
	callCount int
}

// NewMockEmbedder returns an embedder that hashes text into unit vectors.
// Equal texts embed identically; different texts are effectively unrelated.
func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{}
}

func (m *MockEmbedder) hooks() (func(context.Context, string) ([]float32, error), func(context.Context, []string) ([][]float32, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	return m.EmbedTextFunc, m.EmbedTextsFunc
}

func (m *MockEmbedder) embed(ctx context.Context, single func(context.Context, string) ([]float32, error), text string) ([]float32, error) {
	if single != nil {
		return single(ctx, text)
	}
	return hashedVector(text, Dimension), nil
}

func (m *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	single, _ := m.hooks()
	return m.embed(ctx, single, text)
}

func (m *MockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	single, batch := m.hooks()
	if batch != nil {
		return batch(ctx, texts)
	}

	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := m.embed(ctx, single, text)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// CallCount counts EmbedText and EmbedTexts calls together.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset zeroes the call count and removes both overrides.
func (m *MockEmbedder) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.EmbedTextFunc = nil
	m.EmbedTextsFunc = nil
}

// hashedVector seeds a linear congruential sequence with the FNV-1a hash of
// text and normalizes the result.
func hashedVector(text string, dim int) []float32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	state := h.Sum32()

	raw := make([]float32, dim)
	for i := range raw {
		state = state*1664525 + 1013904223
		raw[i] = float32(state%1000) / 1000
	}
	return core.NormalizeVector(raw)
}

// NewBagOfWordsEmbedder returns an embedder that assigns each distinct
// lowercase word its own dimension. Texts sharing words are similar and texts
// with none in common are orthogonal, so similarity thresholds behave
// predictably in tests.
func NewBagOfWordsEmbedder() *MockEmbedder {
	v := &vocabulary{index: make(map[string]int)}
	return &MockEmbedder{
		EmbedTextFunc: func(_ context.Context, text string) ([]float32, error) {
			return v.vector(text), nil
		},
	}
}

// vocabularySize bounds bag-of-words vectors; words beyond it share dimensions.
const vocabularySize = 4096

type vocabulary struct {
	mu    sync.Mutex
	index map[string]int
}

func (v *vocabulary) vector(text string) []float32 {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	counts := make([]float32, vocabularySize)
	v.mu.Lock()
	for _, word := range words {
		idx, ok := v.index[word]
		if !ok {
			idx = len(v.index) % vocabularySize
			v.index[word] = idx
		}
		counts[idx]++
	}
	v.mu.Unlock()

	return core.NormalizeVector(counts)
}
