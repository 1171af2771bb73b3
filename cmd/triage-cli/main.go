// Package main implements triage-cli, a command line tool for classifying
// carrier mail with a rule set.
package main

import (
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/di"
	"github.com/mikey/mail-triage/internal/ports"
)

var flags di.CLIFlags

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "triage-cli",
	Short: "Classify carrier mail with a rule set",
	Long: `triage-cli classifies emails with the configured rule set: vendor
detection, subject category, identifiers, company stamp position and whether
the latest reply needs a response.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.ConfigFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&flags.RulesPath, "rules", "", "Path to rule file (overrides rules.path)")
	rootCmd.PersistentFlags().StringVar(&flags.Provider, "provider", "", "Reply advisor provider (none, openai, gemini, bedrock)")
	rootCmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose output and debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")

	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(batchCmd)
	rootCmd.AddCommand(decideCmd)
	rootCmd.AddCommand(checkRulesCmd)
}

// withContainer builds the CLI container and invokes fn with its dependencies
func withContainer(fn interface{}) error {
	container, err := di.BuildCLIContainer(&flags)
	if err != nil {
		return err
	}
	defer func() {
		_ = container.Invoke(func(logger *zap.Logger, records ports.RecordStore) {
			if records != nil {
				records.Stop()
			}
			_ = logger.Sync()
		})
	}()
	return container.Invoke(fn)
}
