package websearch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/poiesic/quarry/core"
)

const serpAPIURL = "https://serpapi.com/search.json"

// SerpAPI searches Google through serpapi.com.
type SerpAPI struct {
	apiKey string
	opts   *options
}

var _ Provider = (*SerpAPI)(nil)

// NewSerpAPI creates a SerpAPI provider.
func NewSerpAPI(apiKey string, opts ...Option) (*SerpAPI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("serpapi: API key is missing")
	}
	o := newOptions(serpAPIURL, 5, opts)
	o.logger = o.logger.With("component", "websearch", "provider", "serpapi")
	return &SerpAPI{apiKey: apiKey, opts: o}, nil
}

type serpAPIResponse struct {
	Error          string `json:"error"`
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
		Date    string `json:"date"`
		Source  string `json:"source"`
	} `json:"organic_results"`
}

// Search runs a Google query and returns its organic results.
func (s *SerpAPI) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("num", strconv.Itoa(s.opts.maxResults))
	params.Set("api_key", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.opts.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSearch, err)
	}
	req.Header.Set("Accept", "application/json")

	var payload serpAPIResponse
	if err := getJSON(ctx, s.opts, "serpapi", req, &payload); err != nil {
		return nil, err
	}
	if payload.Error != "" {
		return nil, fmt.Errorf("%w: serpapi: %s", core.ErrSearch, payload.Error)
	}

	results := make([]Result, 0, len(payload.OrganicResults))
	for _, r := range payload.OrganicResults {
		if r.Link == "" {
			continue
		}
		source := r.Source
		if source == "" {
			source = hostname(r.Link)
		}
		results = append(results, Result{
			Source:  source,
			Link:    r.Link,
			Title:   r.Title,
			Date:    r.Date,
			Snippet: r.Snippet,
		})
		if len(results) >= s.opts.maxResults {
			break
		}
	}

	s.opts.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}

func hostname(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
