// Package result holds the records produced by an accessibility crawl and the
// writers that render them.
package result

import "time"

// ViolationNode is one element that failed an audit rule.
type ViolationNode struct {
	HTML   string `json:"html"`   // Outer HTML of the offending element
	Target string `json:"target"` // Selector-like path to the element
}

// Violation is a single accessibility rule failure on a page.
type Violation struct {
	ID          string          `json:"id"`          // Rule identifier, e.g. "image-alt"
	Impact      string          `json:"impact"`      // minor, moderate, serious or critical
	Description string          `json:"description"` // What the rule checks
	Help        string          `json:"help"`        // Short remediation hint
	HelpURL     string          `json:"helpUrl"`     // Reference documentation
	Nodes       []ViolationNode `json:"nodes"`       // Offending elements in document order
}

// AnalysisResult is one audit outcome for one page.
type AnalysisResult struct {
	ID         int64       `json:"id,omitempty"` // Assigned by the store; zero before persistence
	URL        string      `json:"url"`          // Normalized page URL (no query string)
	Violations []Violation `json:"violations"`   // In the order the auditor reported them
	Timestamp  time.Time   `json:"timestamp"`    // When the audit completed
}

// RuleIDs returns the identifiers of the violated rules in order.
func (r AnalysisResult) RuleIDs() []string {
	ids := make([]string, 0, len(r.Violations))
	for _, v := range r.Violations {
		ids = append(ids, v.ID)
	}
	return ids
}

// CrawlStats contains aggregate statistics for a crawl operation.
type CrawlStats struct {
	Analyzed   int           // Pages successfully audited
	Failed     int           // Pages dropped because fetch or audit failed
	Violations int           // Total violations across analyzed pages
	Duration   time.Duration // Total time taken for the crawl
}

// Summarize computes aggregate counts for a finished crawl.
func Summarize(results []AnalysisResult, failed int, duration time.Duration) CrawlStats {
	stats := CrawlStats{Analyzed: len(results), Failed: failed, Duration: duration}
	for _, r := range results {
		stats.Violations += len(r.Violations)
	}
	return stats
}
