package result

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
)

// WriteJSON writes the results as a formatted JSON array to the writer.
func WriteJSON(w io.Writer, results []AnalysisResult) error {
	if results == nil {
		results = []AnalysisResult{}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write json output: %w", err)
	}
	return nil
}

// WriteCSV writes one row per analyzed page.
// Always includes a header row, even if there are no results.
// Column order: id, url, violations, rule_ids, timestamp
func WriteCSV(w io.Writer, results []AnalysisResult) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "url", "violations", "rule_ids", "timestamp"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, r := range results {
		record := []string{
			idStr(r.ID),
			r.URL,
			strconv.Itoa(len(r.Violations)),
			strings.Join(r.RuleIDs(), ";"),
			r.Timestamp.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv record for %s: %w", r.URL, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv output: %w", err)
	}
	return nil
}

// WriteMarkdown writes a GitHub-flavored Markdown report: a summary table
// followed by one section per page listing its violations.
func WriteMarkdown(w io.Writer, results []AnalysisResult) error {
	md := markdown.NewMarkdown(w)

	md.H1("Accessibility Report")
	md.PlainText("")

	if len(results) == 0 {
		md.PlainText("No pages analyzed.")
		if err := md.Build(); err != nil {
			return fmt.Errorf("write markdown output: %w", err)
		}
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.URL,
			strconv.Itoa(len(r.Violations)),
			Tier(len(r.Violations)).Label,
			r.Timestamp.Format("2006-01-02 15:04:05 MST"),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Violations", "Score", "Analyzed"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range results {
		if len(r.Violations) == 0 {
			continue
		}
		md.H2(r.URL)
		md.PlainText("")
		items := make([]string, 0, len(r.Violations))
		for _, v := range r.Violations {
			items = append(items, fmt.Sprintf("%s (%s): %s", v.ID, v.Impact, v.Description))
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if err := md.Build(); err != nil {
		return fmt.Errorf("write markdown output: %w", err)
	}
	return nil
}

// idStr converts a store id to a string.
// Returns empty string for 0 (not yet persisted).
func idStr(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}
