package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mikey/mail-triage/internal/core"
)

var decideCmd = &cobra.Command{
	Use:   "decide <message-id> yes|no",
	Short: "Record whether a triaged message needs a reply",
	Long: `Store a human decision for a message in the configured record store.

Examples:
  triage-cli decide t1@acmefreight.com yes`,
	Args: cobra.ExactArgs(2),
	RunE: runDecide,
}

func runDecide(cmd *cobra.Command, args []string) error {
	needsReply, err := parseDecision(args[1])
	if err != nil {
		return err
	}

	flags.UseStore = true
	return withContainer(func(service *core.TriageService) error {
		if err := service.RecordDecision(context.Background(), args[0], needsReply); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s: needs reply %t\n", args[0], needsReply)
		return nil
	})
}

func parseDecision(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "y", "true":
		return true, nil
	case "no", "n", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid decision %q, expected yes or no", s)
	}
}
