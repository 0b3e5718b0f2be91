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

const braveURL = "https://api.search.brave.com/res/v1/web/search"

// Brave uses the Brave Search API. An API key is required via X-Subscription-Token.
type Brave struct {
	apiKey string
	opts   *options
}

var _ Provider = (*Brave)(nil)

// NewBrave constructs a Brave search provider.
// The default rate matches Brave's free tier of one request per second.
func NewBrave(apiKey string, opts ...Option) (*Brave, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("brave: API key is missing")
	}
	o := newOptions(braveURL, 1, opts)
	o.logger = o.logger.With("component", "websearch", "provider", "brave")
	return &Brave{apiKey: apiKey, opts: o}, nil
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
			Age         string `json:"age"`
			Profile     struct {
				Name string `json:"name"`
			} `json:"profile"`
		} `json:"results"`
	} `json:"web"`
}

// Search executes a Brave query.
func (b *Brave) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(b.opts.maxResults))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.opts.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrSearch, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	var payload braveResponse
	if err := getJSON(ctx, b.opts, "brave", req, &payload); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(payload.Web.Results))
	for _, r := range payload.Web.Results {
		if r.URL == "" {
			continue
		}
		source := r.Profile.Name
		if source == "" {
			source = hostname(r.URL)
		}
		results = append(results, Result{
			Source:  source,
			Link:    r.URL,
			Title:   r.Title,
			Date:    r.Age,
			Snippet: r.Description,
		})
		if len(results) >= b.opts.maxResults {
			break
		}
	}

	b.opts.logger.Debug("search complete", "query", query, "results", len(results))
	return results, nil
}
