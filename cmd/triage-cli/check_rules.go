package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-triage/internal/rules"
)

var checkRulesCmd = &cobra.Command{
	Use:   "check-rules",
	Short: "Load and validate the rule file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withContainer(func(r *rules.Rules) {
			out := cmd.OutOrStdout()
			warnings := r.Warnings()
			if len(warnings) == 0 {
				fmt.Fprintln(out, "Rule set OK")
				return
			}
			for _, w := range warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
		})
	},
}
