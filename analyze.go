package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/portalaudit/result"
	"github.com/lukemcguire/portalaudit/store"
)

// NewAnalyzeCmd creates the analyze command.
// It audits a single page and stores the result unless the URL is already stored.
func NewAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <url>",
		Short: "Audit a single page",
		Long: `Fetch one page, audit it for accessibility violations and store the result.
No links are followed. A URL that is already stored is reported but not
stored again; use "results reanalyze" to refresh it.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	addFetchFlags(cmd)
	cmd.Flags().StringP("format", "f", formatText, "Output format (text, json, csv, markdown)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if err := validateFormat(format); err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	start := time.Now()
	analysis, err := s.newCrawler(nil).Analyze(s.ctx, args[0])
	if err != nil {
		return fmt.Errorf("analyze %s: %w", args[0], err)
	}

	inserted, err := store.NewReconciler(s.store).Persist(s.ctx, []result.AnalysisResult{*analysis})
	if err != nil {
		return fmt.Errorf("store result: %w", err)
	}
	if len(inserted) == 1 {
		analysis = &inserted[0]
	} else {
		_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s is already stored; result not saved\n", analysis.URL)
	}

	results := []result.AnalysisResult{*analysis}
	return writeResults(cmd.OutOrStdout(), format, results, result.Summarize(results, 0, time.Since(start)))
}
