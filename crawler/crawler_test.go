package crawler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lukemcguire/portalaudit/audit"
	"github.com/lukemcguire/portalaudit/crawler"
	"github.com/lukemcguire/portalaudit/result"
)

const portal = "/sede/portal/etopia/"

// newPortalServer serves a small municipal portal:
//
//	/sede/portal/etopia/                  -> agenda, cursos, roto, plus out-of-scope links
//	/sede/portal/etopia/agenda            -> agenda/2025, back to the seed
//	/sede/portal/etopia/cursos            -> cursos/robotica
//	/sede/portal/etopia/agenda/2025       -> agenda/2025/enero (depth 3)
//	/sede/portal/etopia/cursos/robotica   -> image without alt text
//	/sede/portal/etopia/roto              -> 404
//
// Every request path is counted in hits.
func newPortalServer(t *testing.T) (*httptest.Server, *hitCounter) {
	t.Helper()
	hits := &hitCounter{paths: make(map[string]int)}

	pages := map[string]string{
		portal: `<html lang="es"><body><main><h1>Etopia</h1>
			<a href="agenda">Agenda</a>
			<a href="cursos">Cursos</a>
			<a href="/sede/portal/etopia/agenda?page=2">Agenda (2)</a>
			<a href="/sede/portal/otro/">Otro portal</a>
			<a href="/sede/portal/etopia/servicio/tramite">Trámite</a>
			<a href="#main">Saltar</a>
			<a href="https://example.org/sede/portal/etopia/fuera">Fuera</a>
			<a href="roto">Roto</a>
		</main></body></html>`,
		portal + "agenda": `<html><body><h1>Agenda</h1>
			<a href="/sede/portal/etopia/agenda/2025">2025</a>
			<a href="/sede/portal/etopia/">Inicio</a></body></html>`,
		portal + "cursos": `<html><body><h1>Cursos</h1>
			<a href="/sede/portal/etopia/cursos/robotica">Robótica</a></body></html>`,
		portal + "agenda/2025": `<html><body><h1>2025</h1>
			<a href="/sede/portal/etopia/agenda/2025/enero">Enero</a></body></html>`,
		portal + "agenda/2025/enero": `<html><body><h1>Enero</h1></body></html>`,
		portal + "cursos/robotica": `<html><body><h1>Robótica</h1>
			<img src="/img/robot.png"></body></html>`,
		"/sede/portal/otro/": `<html><body><h1>Otro</h1></body></html>`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r.URL.Path)
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := fmt.Fprint(w, body); err != nil {
			t.Errorf("write page: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server, hits
}

type hitCounter struct {
	mu    sync.Mutex
	paths map[string]int
}

func (h *hitCounter) add(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.paths[path]++
}

func (h *hitCounter) count(path string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.paths[path]
}

func (h *hitCounter) total() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := 0
	for _, c := range h.paths {
		n += c
	}
	return n
}

func testConfig() crawler.Config {
	return crawler.Config{
		RequestTimeout: 2 * time.Second,
		RateLimit:      20,
		RetryPolicy:    crawler.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func resultURLs(results []result.AnalysisResult) []string {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		urls = append(urls, r.URL)
	}
	return urls
}

func TestCrawl(t *testing.T) {
	ts, hits := newPortalServer(t)
	seed := ts.URL + portal

	c := crawler.New(testConfig(), nil)
	results, err := c.Crawl(context.Background(), seed, 2)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	want := []string{
		seed,
		seed + "agenda",
		seed + "cursos",
		seed + "agenda/2025",
		seed + "cursos/robotica",
	}
	if got := resultURLs(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Crawl() URLs =\n%v\nwant\n%v", got, want)
	}

	for _, r := range results {
		wantViolations := 0
		if strings.HasSuffix(r.URL, "robotica") {
			wantViolations = 1
		}
		if len(r.Violations) != wantViolations {
			t.Errorf("%s: %d violations, want %d", r.URL, len(r.Violations), wantViolations)
		}
		if r.Timestamp.IsZero() {
			t.Errorf("%s: zero timestamp", r.URL)
		}
		if r.ID != 0 {
			t.Errorf("%s: ID = %d before persistence", r.URL, r.ID)
		}
	}

	for _, path := range []string{"/sede/portal/otro/", portal + "servicio/tramite", portal + "agenda/2025/enero"} {
		if n := hits.count(path); n != 0 {
			t.Errorf("%s fetched %d times, want 0", path, n)
		}
	}
	if n := hits.count(portal); n != 1 {
		t.Errorf("seed fetched %d times, want 1", n)
	}
}

func TestCrawlSkipsEmptyFragmentLinks(t *testing.T) {
	hits := &hitCounter{paths: make(map[string]int)}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.add(r.URL.Path)
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err := fmt.Fprint(w, `<html><body><h1>Etopia</h1><a href="acerca#">Acerca</a><a href="#">Arriba</a></body></html>`); err != nil {
			t.Errorf("write page: %v", err)
		}
	}))
	t.Cleanup(ts.Close)
	seed := ts.URL + portal

	results, err := crawler.New(testConfig(), nil).Crawl(context.Background(), seed, 2)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if got := resultURLs(results); !reflect.DeepEqual(got, []string{seed}) {
		t.Errorf("Crawl() URLs = %v, want only the seed", got)
	}
	if n := hits.count(portal + "acerca"); n != 0 {
		t.Errorf("acerca fetched %d times, want 0", n)
	}
}

func TestCrawlDepthZero(t *testing.T) {
	ts, hits := newPortalServer(t)

	results, err := crawler.New(testConfig(), nil).Crawl(context.Background(), ts.URL+portal, 0)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Crawl(depth 0) returned %d results, want 1", len(results))
	}
	if hits.total() != 1 {
		t.Errorf("depth 0 crawl made %d requests, want 1", hits.total())
	}
}

func TestCrawlNegativeDepthUsesDefault(t *testing.T) {
	ts, _ := newPortalServer(t)

	results, err := crawler.New(testConfig(), nil).Crawl(context.Background(), ts.URL+portal, -1)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("Crawl(-1) returned %d results, want 5 (depth %d)", len(results), crawler.DefaultMaxDepth)
	}
}

func TestCrawlNoDuplicateURLs(t *testing.T) {
	ts, _ := newPortalServer(t)

	results, err := crawler.New(testConfig(), nil).Crawl(context.Background(), ts.URL+portal, 5)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	seen := make(map[string]bool)
	for _, r := range results {
		if seen[r.URL] {
			t.Errorf("duplicate result for %s", r.URL)
		}
		seen[r.URL] = true
	}
	if !seen[ts.URL+portal+"agenda/2025/enero"] {
		t.Error("depth 3 page missing from a depth 5 crawl")
	}
}

func TestCrawlSeedWithoutPortalSegment(t *testing.T) {
	ts, hits := newPortalServer(t)

	results, err := crawler.New(testConfig(), nil).Crawl(context.Background(), ts.URL+"/sede/servicio/x", 2)
	if !errors.Is(err, result.ErrConfiguration) {
		t.Fatalf("Crawl() error = %v, want ErrConfiguration", err)
	}
	if results == nil || len(results) != 0 {
		t.Errorf("Crawl() = %v, want an empty non-nil slice", results)
	}
	if hits.total() != 0 {
		t.Errorf("made %d requests for an invalid seed, want 0", hits.total())
	}
}

func TestCrawlFailingPageDoesNotStopSiblings(t *testing.T) {
	ts, hits := newPortalServer(t)

	events := make(chan crawler.CrawlEvent, 32)
	results, err := crawler.New(testConfig(), events).Crawl(context.Background(), ts.URL+portal, 2)
	close(events)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	if hits.count(portal+"roto") != 1 {
		t.Errorf("broken page fetched %d times, want 1", hits.count(portal+"roto"))
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}

	var failures []crawler.CrawlEvent
	var last crawler.CrawlEvent
	for evt := range events {
		if evt.Error != "" {
			failures = append(failures, evt)
		}
		last = evt
	}
	if len(failures) != 1 {
		t.Fatalf("got %d failure events, want 1", len(failures))
	}
	if failures[0].ErrorCategory != result.Category4xx {
		t.Errorf("failure category = %q, want %q", failures[0].ErrorCategory, result.Category4xx)
	}
	if !strings.HasSuffix(failures[0].URL, "/roto") {
		t.Errorf("failure URL = %q", failures[0].URL)
	}
	if last.Analyzed != 5 || last.Failed != 1 {
		t.Errorf("last event counters = %d analyzed, %d failed; want 5, 1", last.Analyzed, last.Failed)
	}
}

// flakyAuditor fails on pages containing marker.
type flakyAuditor struct {
	inner  crawler.Auditor
	marker string
}

func (a flakyAuditor) Audit(ctx context.Context, markup string) ([]result.Violation, error) {
	if strings.Contains(markup, a.marker) {
		return nil, errors.New("audit engine crashed")
	}
	return a.inner.Audit(ctx, markup)
}

func TestCrawlAuditFailureSkipsPage(t *testing.T) {
	ts, _ := newPortalServer(t)

	c := crawler.New(testConfig(), nil, crawler.WithAuditor(flakyAuditor{inner: audit.New(), marker: "<h1>Cursos</h1>"}))
	results, err := c.Crawl(context.Background(), ts.URL+portal, 2)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}

	want := []string{
		ts.URL + portal,
		ts.URL + portal + "agenda",
		ts.URL + portal + "agenda/2025",
	}
	if got := resultURLs(results); !reflect.DeepEqual(got, want) {
		t.Errorf("Crawl() URLs = %v, want %v", got, want)
	}
}

func TestCrawlMaxPages(t *testing.T) {
	ts, _ := newPortalServer(t)

	cfg := testConfig()
	cfg.MaxPages = 2
	results, err := crawler.New(cfg, nil).Crawl(context.Background(), ts.URL+portal, 2)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("got %d results, want 2", len(results))
	}
}

func TestCrawlBloomBackend(t *testing.T) {
	ts, _ := newPortalServer(t)

	cfg := testConfig()
	cfg.VisitedBackend = crawler.BackendBloom
	results, err := crawler.New(cfg, nil).Crawl(context.Background(), ts.URL+portal, 2)
	if err != nil {
		t.Fatalf("Crawl() error: %v", err)
	}
	if len(results) != 5 {
		t.Errorf("got %d results, want 5", len(results))
	}
}

// cancelAfterAudit cancels the crawl once the first page has been audited.
type cancelAfterAudit struct {
	inner  crawler.Auditor
	cancel context.CancelFunc
}

func (a cancelAfterAudit) Audit(ctx context.Context, markup string) ([]result.Violation, error) {
	v, err := a.inner.Audit(ctx, markup)
	a.cancel()
	return v, err
}

func TestCrawlCancelledReturnsPartialResults(t *testing.T) {
	ts, _ := newPortalServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := crawler.New(testConfig(), nil, crawler.WithAuditor(cancelAfterAudit{inner: audit.New(), cancel: cancel}))
	results, err := c.Crawl(ctx, ts.URL+portal, 2)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Crawl() error = %v, want context.Canceled", err)
	}
	if len(results) != 1 {
		t.Errorf("got %d results, want the seed only", len(results))
	}
}

func TestCrawlConcurrentRunsAreIndependent(t *testing.T) {
	ts, _ := newPortalServer(t)
	c := crawler.New(testConfig(), nil)

	var wg sync.WaitGroup
	counts := make([]int, 2)
	errs := make([]error, 2)
	seeds := []string{ts.URL + portal, ts.URL + "/sede/portal/otro/"}
	for i, seed := range seeds {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := c.Crawl(context.Background(), seed, 2)
			counts[i], errs[i] = len(res), err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("Crawl(%s) error: %v", seeds[i], err)
		}
	}
	if counts[0] != 5 || counts[1] != 1 {
		t.Errorf("result counts = %v, want [5 1]", counts)
	}
}

func TestAnalyze(t *testing.T) {
	ts, _ := newPortalServer(t)
	fixed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := crawler.New(testConfig(), nil, crawler.WithClock(func() time.Time { return fixed }))

	res, err := c.Analyze(context.Background(), ts.URL+portal+"cursos/robotica?ref=home")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.URL != ts.URL+portal+"cursos/robotica" {
		t.Errorf("URL = %q, want the query stripped", res.URL)
	}
	if !res.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", res.Timestamp, fixed)
	}
	if ids := res.RuleIDs(); !reflect.DeepEqual(ids, []string{"image-alt"}) {
		t.Errorf("RuleIDs() = %v, want [image-alt]", ids)
	}
}

func TestAnalyzeErrors(t *testing.T) {
	ts, _ := newPortalServer(t)
	c := crawler.New(testConfig(), nil)

	if _, err := c.Analyze(context.Background(), ts.URL+portal+"roto"); !errors.Is(err, result.ErrFetch) {
		t.Errorf("Analyze(404) error = %v, want ErrFetch", err)
	}
	_, err := c.Analyze(context.Background(), "://no-scheme")
	if !errors.Is(err, result.ErrFetch) {
		t.Errorf("Analyze(bad URL) error = %v, want ErrFetch", err)
	}
	if errors.Is(err, result.ErrURLParse) {
		t.Errorf("Analyze(bad URL) error = %v, want the fetch failure rather than the normalization failure", err)
	}
}

type recordingFetcher struct {
	mu   sync.Mutex
	urls []string
}

func (f *recordingFetcher) Fetch(_ context.Context, pageURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.urls = append(f.urls, pageURL)
	return `<html lang="es"><body><h1>Etopia</h1></body></html>`, nil
}

func TestAnalyzeUnnormalizedURLFallsBackToRaw(t *testing.T) {
	fetcher := &recordingFetcher{}
	c := crawler.New(testConfig(), nil, crawler.WithFetcher(fetcher))

	res, err := c.Analyze(context.Background(), "etopia/agenda")
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	if res.URL != "etopia/agenda" {
		t.Errorf("URL = %q, want the raw input", res.URL)
	}
	if !reflect.DeepEqual(fetcher.urls, []string{"etopia/agenda"}) {
		t.Errorf("fetched %v, want [etopia/agenda]", fetcher.urls)
	}
}
