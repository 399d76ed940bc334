package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lukemcguire/portalaudit/config"
	"github.com/lukemcguire/portalaudit/crawler"
	"github.com/lukemcguire/portalaudit/result"
	"github.com/lukemcguire/portalaudit/store"
	"github.com/lukemcguire/portalaudit/tui"
)

// errInterrupted is returned when the user quits the TUI mid-crawl.
var errInterrupted = errors.New("crawl interrupted")

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <seed>...",
		Short: "Crawl portals breadth-first and audit every page",
		Long: `Crawl each seed URL breadth-first, following only links inside the seed's
portal namespace (the path segment after the namespace marker), and audit
every page reached. Seeds are crawled concurrently and every new page is
stored; pages already stored are skipped.`,
		Example: `  portalaudit crawl https://www.zaragoza.es/sede/portal/etopia/
  portalaudit crawl --depth 3 --tui https://www.zaragoza.es/sede/portal/etopia/
  portalaudit crawl -f json -o report.json <seed1> <seed2>`,
		Args: cobra.MinimumNArgs(1),
		RunE: runCrawl,
	}

	addFetchFlags(cmd)
	cmd.Flags().IntP("depth", "d", config.DefaultDepth, "Maximum link depth from the seed (0 audits the seed only)")
	cmd.Flags().Int("max-pages", 0, "Stop each crawl after this many analyzed pages (0 = unlimited)")
	cmd.Flags().Int("concurrency", config.DefaultConcurrency, "Seeds crawled at once")
	cmd.Flags().String("marker", config.DefaultNamespaceMarker, "Path segment preceding the portal name")
	cmd.Flags().StringSlice("exclude", config.DefaultExcludedPaths, "Sub-paths never followed")
	cmd.Flags().String("visited", config.DefaultVisitedBackend, "Visited-set backend (memory, bloom)")
	cmd.Flags().Bool("tui", false, "Show an interactive progress view")
	cmd.Flags().StringP("format", "f", formatText, "Output format (text, json, csv, markdown)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")

	return cmd
}

func runCrawl(cmd *cobra.Command, seeds []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if err := validateFormat(format); err != nil {
		return err
	}
	useTUI, err := cmd.Flags().GetBool("tui")
	if err != nil {
		return err
	}
	outputPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	progressCh := make(chan crawler.CrawlEvent, 100)
	job := &crawlJob{
		crawler:     s.newCrawler(progressCh),
		reconciler:  store.NewReconciler(s.store),
		logger:      s.logger,
		seeds:       seeds,
		depth:       s.cfg.Depth,
		concurrency: s.cfg.Concurrency,
		progressCh:  progressCh,
	}

	start := time.Now()
	if useTUI {
		results, crawlErr := runCrawlTUI(s, job)
		if errors.Is(crawlErr, errInterrupted) || (format == formatText && outputPath == "") {
			return crawlErr
		}
		stats := result.Summarize(results, 0, time.Since(start))
		return errors.Join(crawlErr, report(cmd, format, outputPath, results, stats, nil))
	}

	failures := make(map[result.ErrorCategory]int)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for evt := range progressCh {
			if evt.Error != "" {
				failures[evt.ErrorCategory]++
				continue
			}
			s.logger.Debug("page analyzed", "url", evt.URL, "depth", evt.Depth, "violations", evt.Violations)
		}
	}()

	results, crawlErr := job.run(s.ctx)
	<-drained

	failed := 0
	for _, n := range failures {
		failed += n
	}
	stats := result.Summarize(results, failed, time.Since(start))
	return errors.Join(crawlErr, report(cmd, format, outputPath, results, stats, failures))
}

func runCrawlTUI(s *session, job *crawlJob) ([]result.AnalysisResult, error) {
	model := tui.NewModel(s.ctx, s.cancel, job.run, job.progressCh)
	final, err := tea.NewProgram(model).Run()
	if err != nil {
		return nil, fmt.Errorf("run tui: %w", err)
	}

	m, ok := final.(tui.Model)
	if !ok {
		return nil, fmt.Errorf("run tui: unexpected model %T", final)
	}
	if m.Interrupted() {
		return nil, errInterrupted
	}
	return m.Results(), m.Err()
}

func report(cmd *cobra.Command, format, outputPath string, results []result.AnalysisResult, stats result.CrawlStats, failures map[result.ErrorCategory]int) error {
	w, closeOutput, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	err = writeResults(w, format, results, stats)
	if err == nil && format == formatText {
		writeFailures(w, failures)
	}
	return errors.Join(err, closeOutput())
}

// crawlJob crawls several seeds with one Crawler and persists each seed's
// pages through a shared Reconciler.
type crawlJob struct {
	crawler     *crawler.Crawler
	reconciler  *store.Reconciler
	logger      *slog.Logger
	seeds       []string
	depth       int
	concurrency int
	progressCh  chan crawler.CrawlEvent
}

// run crawls every seed, at most concurrency at a time, and closes the
// progress channel when all crawls are done. A failing seed does not stop
// the others; its error is joined into the returned error. Results keep
// seed order and include pages that were already stored.
func (j *crawlJob) run(ctx context.Context) ([]result.AnalysisResult, error) {
	defer close(j.progressCh)

	perSeed := make([][]result.AnalysisResult, len(j.seeds))
	errs := make([]error, len(j.seeds))

	var g errgroup.Group
	g.SetLimit(j.concurrency)
	for i, seed := range j.seeds {
		g.Go(func() error {
			perSeed[i], errs[i] = j.crawlSeed(ctx, seed)
			return nil
		})
	}
	_ = g.Wait()

	var all []result.AnalysisResult
	for _, rs := range perSeed {
		all = append(all, rs...)
	}
	return all, errors.Join(errs...)
}

func (j *crawlJob) crawlSeed(ctx context.Context, seed string) ([]result.AnalysisResult, error) {
	results, crawlErr := j.crawler.Crawl(ctx, seed, j.depth)
	if crawlErr != nil {
		j.logger.Warn("crawl ended with error", "seed", seed, "error", crawlErr, "kind", result.Kind(crawlErr))
	}
	if len(results) == 0 {
		return results, wrapSeed(seed, crawlErr)
	}

	// Partial results from a cancelled crawl are still stored.
	inserted, err := j.reconciler.Persist(context.WithoutCancel(ctx), results)
	if err != nil {
		return results, errors.Join(wrapSeed(seed, crawlErr), fmt.Errorf("store results for %s: %w", seed, err))
	}
	j.logger.Info("results stored", "seed", seed, "analyzed", len(results), "new", len(inserted))

	return withStoredIDs(results, inserted), wrapSeed(seed, crawlErr)
}

func wrapSeed(seed string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("crawl %s: %w", seed, err)
}

// withStoredIDs copies the ids assigned to newly inserted pages onto results.
func withStoredIDs(results, inserted []result.AnalysisResult) []result.AnalysisResult {
	ids := make(map[string]int64, len(inserted))
	for _, r := range inserted {
		ids[r.URL] = r.ID
	}
	for i := range results {
		if id, ok := ids[results[i].URL]; ok {
			results[i].ID = id
		}
	}
	return results
}
