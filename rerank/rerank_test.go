package rerank

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/quarry/ai/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorer_Score(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "release date", req.Query)
		assert.Equal(t, []string{"a", "b", "c"}, req.Texts)

		// Servers return results sorted by score, not input order.
		w.Write([]byte(`[{"index": 2, "score": 0.9}, {"index": 0, "score": 0.5}, {"index": 1, "score": 0.1}]`))
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(srv.URL, "", "secret", nil)
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "release date", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.1, 0.9}, scores)
}

func TestHTTPScorer_Mismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"index": 0, "score": 0.9}]`))
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(srv.URL, "", "", nil)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrScoreMismatch)
}

func TestHTTPScorer_DuplicateIndex(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"index": 0, "score": 0.9}, {"index": 0, "score": 0.1}]`))
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(srv.URL, "", "", nil)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"a", "b"})
	assert.ErrorIs(t, err, ErrScoreMismatch)
}

func TestHTTPScorer_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s, err := NewHTTPScorer(srv.URL, "", "", nil)
	require.NoError(t, err)

	_, err = s.Score(context.Background(), "q", []string{"a"})
	assert.ErrorContains(t, err, "503")
}

func TestHTTPScorer_NoDocs(t *testing.T) {
	s, err := NewHTTPScorer("http://127.0.0.1:1", "", "", nil)
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Empty(t, scores)
}

func TestEmbeddingScorer(t *testing.T) {
	s, err := NewEmbeddingScorer(mock.NewBagOfWordsEmbedder())
	require.NoError(t, err)

	scores, err := s.Score(context.Background(), "season five release date", []string{
		"netflix subscriber growth",
		"season five release date announced",
		"season five cast",
	})
	require.NoError(t, err)
	require.Len(t, scores, 3)

	assert.InDelta(t, 0, scores[0], 1e-6)
	assert.Greater(t, scores[1], scores[2])
	assert.Greater(t, scores[2], scores[0])
}

func TestEmbeddingScorer_RequiresEmbedder(t *testing.T) {
	_, err := NewEmbeddingScorer(nil)
	assert.Error(t, err)
}
