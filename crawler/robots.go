package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

const robotsCacheTTL = time.Hour

// robotsEntry is a parsed robots.txt. A nil group means the host allows
// everything (missing file, server error or unreadable body).
type robotsEntry struct {
	data      *robotstxt.RobotsData
	fetchedAt time.Time
}

// RobotsChecker answers robots.txt questions per host, caching each host's
// rules for an hour. Every failure is treated as allow-all.
type RobotsChecker struct {
	client   *http.Client
	mu       sync.Mutex
	cache    map[string]robotsEntry
	cacheTTL time.Duration
}

// NewRobotsChecker returns a RobotsChecker that fetches robots.txt with client.
func NewRobotsChecker(client *http.Client) *RobotsChecker {
	return &RobotsChecker{
		client:   client,
		cache:    make(map[string]robotsEntry),
		cacheTTL: robotsCacheTTL,
	}
}

// Allowed reports whether userAgent may fetch rawURL. The returned error is
// informational: when it is non-nil the answer is always true.
func (r *RobotsChecker) Allowed(ctx context.Context, rawURL, userAgent string) (bool, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return true, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return true, nil
	}

	data, err := r.rules(ctx, parsed)
	if data == nil {
		return true, err
	}
	return data.TestAgent(parsed.Path, userAgent), nil
}

func (r *RobotsChecker) rules(ctx context.Context, page *url.URL) (*robotstxt.RobotsData, error) {
	host := page.Host

	r.mu.Lock()
	entry, ok := r.cache[host]
	r.mu.Unlock()
	if ok && time.Since(entry.fetchedAt) < r.cacheTTL {
		return entry.data, nil
	}

	data, err := r.fetch(ctx, page.Scheme, host)

	r.mu.Lock()
	r.cache[host] = robotsEntry{data: data, fetchedAt: time.Now()}
	r.mu.Unlock()

	return data, err
}

func (r *RobotsChecker) fetch(ctx context.Context, scheme, host string) (*robotstxt.RobotsData, error) {
	robotsURL := (&url.URL{Scheme: scheme, Host: host, Path: "/robots.txt"}).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create robots.txt request for %s: %w", host, err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt for %s: %w", host, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound || resp.StatusCode >= 500 {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 512<<10))
	if err != nil {
		return nil, fmt.Errorf("read robots.txt for %s: %w", host, err)
	}

	data, err := robotstxt.FromStatusAndBytes(resp.StatusCode, body)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt for %s: %w", host, err)
	}
	return data, nil
}
