package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPScorer calls a cross-encoder rerank endpoint.
//
// The request body is {"query": ..., "texts": [...]} and the response is a
// list of {"index": i, "score": s}, the format served by text-embeddings-inference
// and compatible rerank servers.
type HTTPScorer struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

var _ Scorer = (*HTTPScorer)(nil)

// NewHTTPScorer creates a scorer for the rerank endpoint at url.
func NewHTTPScorer(url, model, apiKey string, client *http.Client) (*HTTPScorer, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("rerank endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &HTTPScorer{
		endpoint: url,
		model:    model,
		apiKey:   apiKey,
		client:   client,
	}, nil
}

type rerankRequest struct {
	Query string   `json:"query"`
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

type rerankResult struct {
	Index int     `json:"index"`
	Score float32 `json:"score"`
}

// Score implements Scorer.
func (s *HTTPScorer) Score(ctx context.Context, query string, docs []string) ([]float32, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(rerankRequest{Query: query, Texts: docs, Model: s.model})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rerank http %d: %s", resp.StatusCode, msg)
	}

	var results []rerankResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("rerank: decoding response: %w", err)
	}
	if len(results) != len(docs) {
		return nil, fmt.Errorf("%w: expected %d, received %d", ErrScoreMismatch, len(docs), len(results))
	}

	scores := make([]float32, len(docs))
	seen := make([]bool, len(docs))
	for _, r := range results {
		if r.Index < 0 || r.Index >= len(docs) || seen[r.Index] {
			return nil, fmt.Errorf("%w: bad index %d", ErrScoreMismatch, r.Index)
		}
		seen[r.Index] = true
		scores[r.Index] = r.Score
	}
	return scores, nil
}
