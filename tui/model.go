// Package tui provides the Bubble Tea terminal UI for portalaudit, showing
// live crawl progress and a styled summary of the audited pages.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lukemcguire/portalaudit/crawler"
	"github.com/lukemcguire/portalaudit/result"
)

// CrawlFunc runs the crawl the UI reports on.
type CrawlFunc func(ctx context.Context) ([]result.AnalysisResult, error)

// Model is the Bubble Tea model for the crawl TUI.
type Model struct {
	ctx        context.Context
	cancel     context.CancelFunc
	crawl      CrawlFunc
	spinner    spinner.Model
	progressCh <-chan crawler.CrawlEvent
	started    time.Time

	analyzed   int
	failed     int
	violations int
	failures   map[result.ErrorCategory]int
	current    string

	quitting bool
	done     bool
	results  []result.AnalysisResult
	stats    result.CrawlStats
	err      error
	width    int
}

// NewModel creates a TUI model that runs crawl and listens on progressCh.
func NewModel(ctx context.Context, cancel context.CancelFunc, crawl CrawlFunc, progressCh <-chan crawler.CrawlEvent) Model {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		ctx:        ctx,
		cancel:     cancel,
		crawl:      crawl,
		spinner:    spin,
		progressCh: progressCh,
		started:    time.Now(),
		failures:   make(map[result.ErrorCategory]int),
	}
}

// Init starts the spinner, the crawl and the progress listener.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startCrawl(), waitForProgress(m.progressCh))
}

func (m Model) startCrawl() tea.Cmd {
	return func() tea.Msg {
		results, err := m.crawl(m.ctx)
		if err != nil {
			err = fmt.Errorf("crawl: %w", err)
		}
		return CrawlDoneMsg{Results: results, Err: err}
	}
}

// Update handles messages from the Bubble Tea runtime.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if m.done {
				return m, tea.Quit
			}
			// Quit once the crawl has returned so its results are persisted
			// before the caller releases the store.
			m.quitting = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width

	case CrawlProgressMsg:
		m.current = msg.URL
		if msg.Failed {
			m.failed++
			if m.failures == nil {
				m.failures = make(map[result.ErrorCategory]int)
			}
			m.failures[msg.Category]++
		} else {
			m.analyzed++
			m.violations += msg.Violations
		}
		return m, waitForProgress(m.progressCh)

	case CrawlDoneMsg:
		m.done = true
		m.results = msg.Results
		m.err = msg.Err
		m.stats = result.Summarize(msg.Results, m.failed, time.Since(m.started))
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the current TUI state.
func (m Model) View() string {
	if m.done {
		out := RenderSummary(m.results, m.stats, m.failures)
		if m.err != nil {
			out += errorStyle.Render("Error: "+m.err.Error()) + "\n"
		}
		return out
	}
	if m.quitting {
		return fmt.Sprintf("%s Stopping... analyzed %d, failed %d, violations %d\n",
			m.spinner.View(), m.analyzed, m.failed, m.violations)
	}
	return fmt.Sprintf("%s Auditing... analyzed %d, failed %d, violations %d\n%s\n",
		m.spinner.View(), m.analyzed, m.failed, m.violations,
		dimStyle.Render("  "+m.current))
}

// Results returns the audited pages once the crawl is done.
func (m Model) Results() []result.AnalysisResult {
	return m.results
}

// Err returns the crawl error, if any.
func (m Model) Err() error {
	return m.err
}

// Interrupted reports whether the user stopped the crawl before it finished.
func (m Model) Interrupted() bool {
	return m.quitting
}
