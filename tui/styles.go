package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/lukemcguire/portalaudit/result"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true)
	successStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	dimStyle      = lipgloss.NewStyle().Faint(true)
	urlStyle      = lipgloss.NewStyle()
)

var tierStyles = map[string]lipgloss.Style{
	"Excellent": lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	"Good":      lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	"Fair":      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"Poor":      lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
}

// categoryOrder lists failure categories from most to least actionable.
var categoryOrder = []result.ErrorCategory{
	result.Category4xx,
	result.Category5xx,
	result.CategoryTimeout,
	result.CategoryDNSFailure,
	result.CategoryConnectionRefused,
	result.CategoryRedirectLoop,
	result.CategoryRobotsDisallowed,
	result.CategoryUnknown,
}

// RenderSummary renders audited pages as a table with their violation
// counts and tiers, followed by failure counts per category.
func RenderSummary(results []result.AnalysisResult, stats result.CrawlStats, failures map[result.ErrorCategory]int) string {
	var b strings.Builder

	if len(results) == 0 {
		b.WriteString(errorStyle.Render("No pages analyzed."))
		b.WriteString("\n")
	} else {
		rows := make([][]string, 0, len(results))
		for _, r := range results {
			tier := result.Tier(len(r.Violations))
			rows = append(rows, []string{r.URL, strconv.Itoa(len(r.Violations)), tier.Label})
		}

		pages := table.New().
			Border(lipgloss.RoundedBorder()).
			Headers("URL", "Violations", "Tier").
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				if col == 2 && row >= 0 && row < len(rows) {
					return tierStyles[rows[row][2]]
				}
				return urlStyle
			}).
			Rows(rows...)

		b.WriteString(pages.Render())
		b.WriteString("\n")
	}

	if stats.Failed > 0 {
		b.WriteString("\n")
		for _, cat := range categoryOrder {
			if n := failures[cat]; n > 0 {
				b.WriteString(categoryStyle.Render(fmt.Sprintf("%s: %d", result.FormatCategory(cat), n)))
				b.WriteString("\n")
			}
		}
	}

	summary := fmt.Sprintf("Analyzed %d pages, found %d violations (%d pages failed) in %s",
		stats.Analyzed, stats.Violations, stats.Failed, stats.Duration.Round(time.Millisecond))
	if stats.Violations == 0 && stats.Analyzed > 0 {
		b.WriteString(successStyle.Render(summary))
	} else {
		b.WriteString(titleStyle.Render(summary))
	}
	b.WriteString("\n")

	return b.String()
}
