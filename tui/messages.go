package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lukemcguire/portalaudit/crawler"
	"github.com/lukemcguire/portalaudit/result"
)

// CrawlProgressMsg reports one processed page.
type CrawlProgressMsg struct {
	URL        string
	Violations int
	Failed     bool
	Category   result.ErrorCategory
}

// CrawlDoneMsg signals that every seed has been crawled.
type CrawlDoneMsg struct {
	Results []result.AnalysisResult
	Err     error
}

// waitForProgress reads one event from the progress channel. A closed
// channel produces no message; completion is reported by the crawl command.
func waitForProgress(ch <-chan crawler.CrawlEvent) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-ch
		if !ok {
			return nil
		}
		return CrawlProgressMsg{
			URL:        evt.URL,
			Violations: evt.Violations,
			Failed:     evt.Error != "",
			Category:   evt.ErrorCategory,
		}
	}
}
