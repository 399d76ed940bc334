package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/lukemcguire/portalaudit/result"
	"github.com/lukemcguire/portalaudit/store"
)

// NewResultsCmd creates the results command and its subcommands.
func NewResultsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "results",
		Short: "Manage stored analysis results",
		Long:  `List, delete, re-analyze and export the analysis results in the store.`,
	}

	cmd.AddCommand(newResultsListCmd())
	cmd.AddCommand(newResultsDeleteCmd())
	cmd.AddCommand(newResultsReanalyzeCmd())
	cmd.AddCommand(newResultsExportCmd())

	return cmd
}

func newResultsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			results, err := s.store.ListAll(s.ctx)
			if err != nil {
				return fmt.Errorf("list results: %w", err)
			}
			renderResultList(cmd.OutOrStdout(), results)
			return nil
		},
	}
}

func newResultsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = s.Close() }()

			if err := s.store.Delete(s.ctx, id); err != nil {
				return resultError("delete", id, err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted result %d\n", id)
			return nil
		},
	}
}

func newResultsReanalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reanalyze <id>",
		Short: "Audit a stored page again and replace its result",
		Long: `Fetch and audit the page behind a stored result again, replacing the stored
violations and timestamp. The result keeps its id.`,
		Args: cobra.ExactArgs(1),
		RunE: runReanalyze,
	}
	addFetchFlags(cmd)
	return cmd
}

func runReanalyze(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	stored, err := s.store.Get(s.ctx, id)
	if err != nil {
		return resultError("load", id, err)
	}

	start := time.Now()
	fresh, err := s.newCrawler(nil).Analyze(s.ctx, stored.URL)
	if err != nil {
		return fmt.Errorf("reanalyze %s: %w", stored.URL, err)
	}
	fresh.ID = stored.ID

	if err := s.store.Update(s.ctx, *fresh); err != nil {
		return resultError("update", id, err)
	}

	results := []result.AnalysisResult{*fresh}
	result.PrintResults(cmd.OutOrStdout(), results, result.Summarize(results, 0, time.Since(start)))
	return nil
}

func newResultsExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored results",
		Example: `  portalaudit results export --format csv -o results.csv
  portalaudit results export --format markdown`,
		Args: cobra.NoArgs,
		RunE: runExport,
	}
	cmd.Flags().StringP("format", "f", formatJSON, "Export format (json, csv, markdown, text)")
	cmd.Flags().StringP("output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return err
	}
	if err := validateFormat(format); err != nil {
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

	results, err := s.store.ListAll(s.ctx)
	if err != nil {
		return fmt.Errorf("list results: %w", err)
	}

	w, closeOutput, err := openOutput(outputPath, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	err = writeResults(w, format, results, result.Summarize(results, 0, 0))
	return errors.Join(err, closeOutput())
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid result id %q", arg)
	}
	return id, nil
}

func resultError(op string, id int64, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("result %d not found", id)
	}
	return fmt.Errorf("%s result %d: %w", op, id, err)
}

var listHeaderStyle = lipgloss.NewStyle().Bold(true)

func renderResultList(w io.Writer, results []result.AnalysisResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "No stored results.")
		return
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.URL,
			strconv.Itoa(len(r.Violations)),
			result.Tier(len(r.Violations)).Label,
			r.Timestamp.Local().Format(time.DateTime),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "URL", "Violations", "Tier", "Audited").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return listHeaderStyle
			}
			return lipgloss.NewStyle()
		}).
		Rows(rows...)

	_, _ = fmt.Fprintln(w, t.Render())
	_, _ = fmt.Fprintf(w, "%d stored results\n", len(results))
}
