// Package crawler walks a municipal portal breadth-first from a seed URL,
// auditing every page inside the seed's portal namespace.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lukemcguire/portalaudit/audit"
	"github.com/lukemcguire/portalaudit/result"
	"github.com/lukemcguire/portalaudit/urlutil"
)

// Auditor checks the markup of one page.
type Auditor interface {
	Audit(ctx context.Context, markup string) ([]result.Violation, error)
}

// Option customizes a Crawler.
type Option func(*Crawler)

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) { c.fetcher = f }
}

// WithAuditor replaces the default accessibility auditor.
func WithAuditor(a Auditor) Option {
	return func(c *Crawler) { c.auditor = a }
}

// WithClock sets the time source for result timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Crawler) { c.now = now }
}

// Crawler analyzes single pages and crawls portals. It holds no per-crawl
// state, so one Crawler may run several crawls concurrently as long as its
// Fetcher and Auditor are safe for concurrent use.
type Crawler struct {
	cfg        Config
	fetcher    Fetcher
	auditor    Auditor
	logger     *slog.Logger
	progressCh chan<- CrawlEvent
	now        func() time.Time
}

// New creates a Crawler. progressCh is optional; pass nil to disable
// progress events. The caller owns the channel.
func New(cfg Config, progressCh chan<- CrawlEvent, opts ...Option) *Crawler {
	cfg = cfg.withDefaults()
	c := &Crawler{
		cfg:        cfg,
		logger:     cfg.Logger,
		progressCh: progressCh,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.fetcher == nil {
		c.fetcher = NewHTTPFetcher(cfg)
	}
	if c.auditor == nil {
		c.auditor = audit.New()
	}
	return c
}

// Analyze fetches and audits a single URL. A URL that cannot be normalized
// is fetched as given. Errors are returned to the caller; nothing is retried
// beyond the fetcher's own policy.
func (c *Crawler) Analyze(ctx context.Context, rawURL string) (*result.AnalysisResult, error) {
	pageURL, err := urlutil.Normalize(rawURL)
	if err != nil {
		c.logger.Warn("url not normalized", "url", rawURL, "kind", result.Kind(err), "error", err)
		pageURL = rawURL
	}
	res, _, err := c.analyzePage(ctx, pageURL)
	return res, err
}

// analyzePage returns the fetched body alongside the result so the crawl can
// extract links without a second request.
func (c *Crawler) analyzePage(ctx context.Context, pageURL string) (*result.AnalysisResult, string, error) {
	c.logger.Debug("analyzing page", "url", pageURL)

	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		if !errors.Is(err, result.ErrFetch) {
			err = fmt.Errorf("fetch %s: %w: %w", pageURL, result.ErrFetch, err)
		}
		return nil, "", err
	}

	violations, err := c.auditor.Audit(ctx, body)
	if err != nil {
		if !errors.Is(err, result.ErrAudit) {
			err = fmt.Errorf("%w: %w", result.ErrAudit, err)
		}
		return nil, body, fmt.Errorf("audit %s: %w", pageURL, err)
	}
	if violations == nil {
		violations = []result.Violation{}
	}

	return &result.AnalysisResult{
		URL:        pageURL,
		Violations: violations,
		Timestamp:  c.now().UTC(),
	}, body, nil
}

// Crawl analyzes the seed and every page reachable from it, breadth-first,
// up to maxDepth link hops (DefaultMaxDepth when negative). Only links that
// stay under the seed's portal namespace are followed.
//
// A seed without a portal segment yields an empty slice and an error
// wrapping result.ErrConfiguration before any request is made. Per-page
// failures are logged and skipped. When ctx is cancelled, the results
// gathered so far are returned together with ctx.Err().
func (c *Crawler) Crawl(ctx context.Context, seed string, maxDepth int) ([]result.AnalysisResult, error) {
	if maxDepth < 0 {
		maxDepth = DefaultMaxDepth
	}

	scope, err := urlutil.NewScope(seed, c.cfg.NamespaceMarker, c.cfg.ExcludedPaths)
	if err != nil {
		c.logger.Error("invalid seed", "seed", seed, "error", err)
		return []result.AnalysisResult{}, err
	}

	run, err := c.newRun(scope, maxDepth)
	if err != nil {
		return []result.AnalysisResult{}, err
	}
	defer run.close()

	start := time.Now()
	results, err := run.execute(ctx)
	c.logger.Info("crawl finished",
		"seed", scope.Seed(),
		"portal", scope.Namespace(),
		"analyzed", len(results),
		"failed", run.failed,
		"duration", time.Since(start).Round(time.Millisecond))
	return results, err
}

type crawlNode struct {
	url   string
	depth int
}

// crawlRun holds the state of one Crawl invocation.
type crawlRun struct {
	c        *Crawler
	scope    *urlutil.Scope
	maxDepth int
	queue    []crawlNode
	visited  URLSet
	analyzed URLSet
	results  []result.AnalysisResult
	failed   int
}

func (c *Crawler) newRun(scope *urlutil.Scope, maxDepth int) (*crawlRun, error) {
	visited, err := NewURLSet(c.cfg.VisitedBackend)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", result.ErrConfiguration, err)
	}
	analyzed, err := NewURLSet(c.cfg.VisitedBackend)
	if err != nil {
		_ = visited.Close()
		return nil, fmt.Errorf("%w: %w", result.ErrConfiguration, err)
	}
	return &crawlRun{
		c:        c,
		scope:    scope,
		maxDepth: maxDepth,
		visited:  visited,
		analyzed: analyzed,
		results:  []result.AnalysisResult{},
	}, nil
}

func (r *crawlRun) close() {
	if err := errors.Join(r.visited.Close(), r.analyzed.Close()); err != nil {
		r.c.logger.Warn("release crawl sets", "error", err)
	}
}

func (r *crawlRun) execute(ctx context.Context) ([]result.AnalysisResult, error) {
	r.queue = append(r.queue, crawlNode{url: r.scope.Seed(), depth: 0})

	for len(r.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return r.results, err
		}
		if limit := r.c.cfg.MaxPages; limit > 0 && len(r.results) >= limit {
			r.c.logger.Info("page limit reached", "limit", limit, "pending", len(r.queue))
			break
		}

		node := r.queue[0]
		r.queue = r.queue[1:]

		if node.depth > r.maxDepth || r.visited.Has(node.url) {
			continue
		}
		r.visited.Add(node.url)

		r.process(ctx, node)
	}

	return r.results, nil
}

func (r *crawlRun) process(ctx context.Context, node crawlNode) {
	var body string
	if !r.analyzed.Has(node.url) {
		res, fetched, err := r.c.analyzePage(ctx, node.url)
		if err != nil {
			r.fail(ctx, node, err)
			return
		}
		r.results = append(r.results, *res)
		r.analyzed.Add(node.url)
		r.emit(ctx, CrawlEvent{URL: node.url, Depth: node.depth, Violations: len(res.Violations)})
		body = fetched
	} else {
		fetched, err := r.c.fetcher.Fetch(ctx, node.url)
		if err != nil {
			r.fail(ctx, node, err)
			return
		}
		body = fetched
	}

	if node.depth >= r.maxDepth {
		return
	}
	for _, link := range r.candidates(node.url, body) {
		r.queue = append(r.queue, crawlNode{url: link, depth: node.depth + 1})
	}
}

// candidates returns the in-scope links of a page that have not been
// analyzed in this run.
func (r *crawlRun) candidates(pageURL, body string) []string {
	base, err := url.Parse(pageURL)
	if err != nil {
		r.c.logger.Warn("unparseable page URL", "url", pageURL, "kind", result.Kind(err), "error", err)
		return nil
	}

	links, err := ExtractLinks(strings.NewReader(body), base)
	if err != nil {
		r.c.logger.Debug("link extraction incomplete", "url", pageURL, "error", err)
	}

	out := links[:0]
	for _, link := range links {
		if r.scope.Allows(link) && !r.analyzed.Has(link) {
			out = append(out, link)
		}
	}
	return out
}

func (r *crawlRun) fail(ctx context.Context, node crawlNode, err error) {
	r.failed++

	evt := CrawlEvent{URL: node.url, Depth: node.depth, Error: err.Error(), ErrorCategory: result.CategoryUnknown}
	var fe *FetchError
	if errors.As(err, &fe) && fe.Category != "" {
		evt.ErrorCategory = fe.Category
	}

	r.c.logger.Warn("page skipped",
		"url", node.url,
		"depth", node.depth,
		"kind", result.Kind(err),
		"category", evt.ErrorCategory,
		"error", err)
	r.emit(ctx, evt)
}

func (r *crawlRun) emit(ctx context.Context, evt CrawlEvent) {
	if r.c.progressCh == nil {
		return
	}
	evt.Seed = r.scope.Seed()
	evt.Analyzed = len(r.results)
	evt.Failed = r.failed
	select {
	case r.c.progressCh <- evt:
	case <-ctx.Done():
	}
}
