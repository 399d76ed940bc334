package main

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/lukemcguire/portalaudit/result"
)

// Output formats accepted by --format.
const (
	formatText     = "text"
	formatJSON     = "json"
	formatCSV      = "csv"
	formatMarkdown = "markdown"
)

var formats = []string{formatText, formatJSON, formatCSV, formatMarkdown}

func validateFormat(format string) error {
	if !slices.Contains(formats, format) {
		return fmt.Errorf("unknown format %q (want one of %v)", format, formats)
	}
	return nil
}

// writeResults renders results in the requested format.
func writeResults(w io.Writer, format string, results []result.AnalysisResult, stats result.CrawlStats) error {
	switch format {
	case formatText:
		result.PrintResults(w, results, stats)
		return nil
	case formatJSON:
		return result.WriteJSON(w, results)
	case formatCSV:
		return result.WriteCSV(w, results)
	case formatMarkdown:
		return result.WriteMarkdown(w, results)
	default:
		return validateFormat(format)
	}
}

// writeFailures lists failed page counts per category.
func writeFailures(w io.Writer, failures map[result.ErrorCategory]int) {
	for _, cat := range slices.Sorted(maps.Keys(failures)) {
		_, _ = fmt.Fprintf(w, "  %s: %d\n", result.FormatCategory(cat), failures[cat])
	}
}

// openOutput returns path opened for writing, or fallback when path is empty.
// The returned close function is always safe to call.
func openOutput(path string, fallback io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return fallback, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, f.Close, nil
}
