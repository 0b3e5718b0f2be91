// Package websearch implements web search providers that turn a query into
// a short list of result links with their provider metadata.
package websearch

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultMaxResults is the number of results returned per query.
const DefaultMaxResults = 5

// Result is one organic search result.
type Result struct {
	Source  string
	Link    string
	Title   string
	Date    string
	Snippet string
}

// Provider runs web searches.
// Failures are returned wrapped in core.ErrSearch.
type Provider interface {
	Search(ctx context.Context, query string) ([]Result, error)
}

type options struct {
	baseURL    string
	client     *http.Client
	maxResults int
	limiter    *rate.Limiter
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
}

// Option configures a provider.
type Option func(*options)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(o *options) {
		o.baseURL = u
	}
}

// WithHTTPClient sets the HTTP client used for requests.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		if client != nil {
			o.client = client
		}
	}
}

// WithMaxResults caps the number of results per query.
func WithMaxResults(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxResults = n
		}
	}
}

// WithRateLimit sets the sustained request rate and burst.
// A non-positive perSecond disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *options) {
		if perSecond <= 0 {
			o.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetries sets how many times throttled or failed requests are retried.
func WithRetries(retries int, delay time.Duration) Option {
	return func(o *options) {
		if retries >= 0 {
			o.retries = retries
		}
		if delay > 0 {
			o.retryDelay = delay
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(defaultURL string, defaultRate float64, opts []Option) *options {
	o := &options{
		baseURL:    defaultURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		maxResults: DefaultMaxResults,
		limiter:    rate.NewLimiter(rate.Limit(defaultRate), 1),
		retries:    2,
		retryDelay: time.Second,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
