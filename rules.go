package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukemcguire/portalaudit/audit"
)

// NewRulesCmd creates the rules command.
func NewRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the accessibility rules pages are audited against",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			w := cmd.OutOrStdout()
			for _, r := range audit.DefaultRules() {
				_, _ = fmt.Fprintf(w, "%-18s %-9s %s\n", r.ID, r.Impact, r.Help)
				_, _ = fmt.Fprintf(w, "%-18s %-9s %s\n", "", "", r.HelpURL())
			}
		},
	}
}
