// Package fetch retrieves web pages as markdown text and decides which pages
// may be crawled.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/poiesic/quarry/core"
)

// Fetcher retrieves page content.
type Fetcher interface {
	// CanFetch reports whether crawling rules permit fetching url.
	CanFetch(ctx context.Context, url string) bool

	// Fetch downloads url and returns its text. Pages without text content
	// return core.ErrEmptyContent. Other failures wrap core.ErrFetch.
	Fetch(ctx context.Context, url string) (*core.Page, error)
}

const (
	// DefaultUserAgent identifies quarry to web servers and robots.txt.
	DefaultUserAgent = "QuarryBot/1.0"
	// DefaultMaxBytes bounds the size of a downloaded page.
	DefaultMaxBytes = 2 * 1024 * 1024
)

// HTTPFetcher downloads pages over HTTP and converts HTML to markdown.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	maxBytes  int64
	robots    *RobotsChecker
	converter *md.Converter
	logger    *slog.Logger
}

var _ Fetcher = (*HTTPFetcher)(nil)

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithHTTPClient sets the HTTP client for page and robots.txt requests.
func WithHTTPClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithUserAgent sets the User-Agent header and robots.txt agent.
func WithUserAgent(agent string) Option {
	return func(f *HTTPFetcher) {
		if agent != "" {
			f.userAgent = agent
		}
	}
}

// WithMaxBytes bounds the number of bytes read from a page.
func WithMaxBytes(n int64) Option {
	return func(f *HTTPFetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewHTTPFetcher creates a fetcher that honors robots.txt.
func NewHTTPFetcher(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    &http.Client{Timeout: 30 * time.Second},
		userAgent: DefaultUserAgent,
		maxBytes:  DefaultMaxBytes,
		converter: md.NewConverter("", true, nil),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With("component", "fetch")
	f.robots = NewRobotsChecker(f.client, f.userAgent, f.logger)
	return f
}

// CanFetch consults the site's robots.txt.
func (f *HTTPFetcher) CanFetch(ctx context.Context, rawURL string) bool {
	return f.robots.Allowed(ctx, rawURL)
}

// Fetch downloads the URL and converts it to markdown.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*core.Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.1")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: http %d", core.ErrFetch, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}

	text, err := f.toMarkdown(resp.Header.Get("Content-Type"), string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrFetch, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, core.ErrEmptyContent
	}

	f.logger.Debug("fetched page", "url", rawURL, "bytes", len(body), "chars", len(text))
	return &core.Page{
		URL:  rawURL,
		Text: text,
		Metadata: map[string]string{
			core.MetaLink:   rawURL,
			core.MetaSource: u.Hostname(),
		},
	}, nil
}

var errUnsupportedContent = errors.New("unsupported content type")

func (f *HTTPFetcher) toMarkdown(contentType, body string) (string, error) {
	mediaType := "text/html"
	if contentType != "" {
		parsed, _, err := mime.ParseMediaType(contentType)
		if err == nil {
			mediaType = parsed
		}
	}

	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		return f.converter.ConvertString(body)
	case strings.HasPrefix(mediaType, "text/"):
		return body, nil
	default:
		return "", fmt.Errorf("%w: %s", errUnsupportedContent, mediaType)
	}
}
