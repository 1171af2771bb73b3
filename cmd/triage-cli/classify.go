package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/mailparse"
	"github.com/mikey/mail-triage/internal/ports"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [file]",
	Short: "Classify one RFC 5322 message from a file or stdin",
	Long: `Parse a raw message, extract the latest reply and classify it.

Examples:
  # Classify a saved message
  triage-cli classify tender.eml

  # Classify from stdin and print JSON
  cat tender.eml | triage-cli classify --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClassify,
}

func init() {
	classifyCmd.Flags().BoolVar(&flags.JSONOutput, "json", false, "Print the result as JSON")
}

func runClassify(cmd *cobra.Command, args []string) error {
	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open input file: %w", err)
		}
		defer f.Close()
		in = f
	}

	return withContainer(func(logger *zap.Logger, emailFilter ports.EmailFilter) error {
		msg, err := mailparse.Parse(in)
		if err != nil {
			return err
		}
		logger.Debug("Parsed message", zap.String("message_id", msg.Email.ID))

		_, err = emailFilter.ProcessMessage(context.Background(), msg)
		return err
	})
}
