package result

import (
	"fmt"
	"io"
)

// PrintResults writes per-page violation details and a summary to w.
func PrintResults(w io.Writer, results []AnalysisResult, stats CrawlStats) {
	writef := func(format string, a ...any) { _, _ = fmt.Fprintf(w, format, a...) }

	if len(results) == 0 {
		writef("No pages analyzed.\n")
	} else {
		for i, r := range results {
			writef("%s\n", r.URL)
			if len(r.Violations) == 0 {
				writef("  No violations\n")
			}
			for _, v := range r.Violations {
				writef("  %s: %s\n", v.ID, v.Description)
			}
			if i < len(results)-1 {
				writef("\n")
			}
		}
	}
	writef("Analyzed %d pages, found %d violations (%d pages failed)\n", stats.Analyzed, stats.Violations, stats.Failed)
}
