package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// maxRobotsBytes bounds how much of a robots.txt file is read.
const maxRobotsBytes = 512 * 1024

// RobotsChecker answers crawl permission questions from robots.txt.
// Parsed files are cached per scheme and host for the checker's lifetime.
// When robots.txt cannot be retrieved or parsed the URL is allowed.
type RobotsChecker struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[string]*robotstxt.RobotsData
}

// NewRobotsChecker creates a checker that tests paths for userAgent.
func NewRobotsChecker(client *http.Client, userAgent string, logger *slog.Logger) *RobotsChecker {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RobotsChecker{
		client:    client,
		userAgent: userAgent,
		logger:    logger.With("component", "robots"),
		cache:     make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether rawURL may be fetched.
func (rc *RobotsChecker) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}

	data := rc.robotsFor(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}

	allowed := data.TestAgent(path, rc.userAgent)
	if !allowed {
		rc.logger.Debug("blocked by robots.txt", "url", rawURL)
	}
	return allowed
}

// robotsFor returns the parsed robots.txt for the URL's origin, or nil when
// it could not be retrieved. Failures are not cached so a later round may
// succeed.
func (rc *RobotsChecker) robotsFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host

	rc.mu.Lock()
	data, ok := rc.cache[origin]
	rc.mu.Unlock()
	if ok {
		return data
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Debug("error reading robots.txt", "origin", origin, "err", err)
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		rc.logger.Debug("robots.txt unavailable", "origin", origin, "status", resp.StatusCode)
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		rc.logger.Debug("error reading robots.txt", "origin", origin, "err", err)
		return nil
	}

	data, err = robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		rc.logger.Debug("error parsing robots.txt", "origin", origin, "err", err)
		return nil
	}

	rc.mu.Lock()
	rc.cache[origin] = data
	rc.mu.Unlock()
	return data
}
