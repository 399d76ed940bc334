package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lukemcguire/portalaudit/result"
)

// Fetcher retrieves the markup of a page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// FetchError describes a page that could not be retrieved. It matches
// result.ErrFetch under errors.Is.
type FetchError struct {
	URL        string
	StatusCode int
	Category   result.ErrorCategory
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "fetch %s: ", e.URL)
	switch {
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	case e.StatusCode != 0:
		fmt.Fprintf(&b, "HTTP %d", e.StatusCode)
	default:
		b.WriteString(string(e.Category))
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " (after %d attempts)", e.Attempts)
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{result.ErrFetch}
	}
	return []error{result.ErrFetch, e.Err}
}

// HTTPFetcher fetches pages over HTTP with pacing, retries and optional
// robots.txt compliance.
type HTTPFetcher struct {
	client    *http.Client
	limiter   *AdaptiveLimiter
	robots    *RobotsChecker
	userAgent string
	timeout   time.Duration
	maxBody   int64
	retry     RetryPolicy
}

// NewHTTPFetcher returns an HTTPFetcher configured from cfg.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	cfg = cfg.withDefaults()

	f := &HTTPFetcher{
		client:    &http.Client{},
		limiter:   NewAdaptiveLimiter(cfg.RateLimit, defaultTargetRTT, cfg.AdaptiveRate),
		userAgent: cfg.UserAgent,
		timeout:   cfg.RequestTimeout,
		maxBody:   cfg.MaxBodySize,
		retry:     cfg.RetryPolicy,
	}
	if cfg.RespectRobots {
		f.robots = NewRobotsChecker(&http.Client{Timeout: 5 * time.Second})
	}
	return f
}

// Fetch returns the body of pageURL. Any failure is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	if f.robots != nil {
		// robots.txt errors fail open; allowed is true whenever err != nil.
		allowed, _ := f.robots.Allowed(ctx, pageURL, f.userAgent)
		if !allowed {
			return "", &FetchError{
				URL:      pageURL,
				Category: result.CategoryRobotsDisallowed,
				Err:      result.ErrRobotsDisallowed,
			}
		}
	}

	return withRetry(ctx, f.retry, func(ctx context.Context) (string, error) {
		return f.fetchOnce(ctx, pageURL)
	})
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, pageURL string) (string, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return "", &FetchError{URL: pageURL, Category: result.ClassifyError(err, 0), Err: err}
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", &FetchError{URL: pageURL, Category: result.CategoryUnknown, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	start := time.Now()
	resp, err := f.client.Do(req)
	f.limiter.ObserveRTT(time.Since(start))
	if err != nil {
		return "", &FetchError{URL: pageURL, Category: result.ClassifyError(err, 0), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return "", &FetchError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Category:   result.ClassifyError(nil, resp.StatusCode),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody))
	if err != nil {
		err = fmt.Errorf("read body: %w", err)
		return "", &FetchError{URL: pageURL, Category: result.ClassifyError(err, 0), Err: err}
	}
	return string(body), nil
}
