package di

import (
	"context"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/ports"
	"github.com/mikey/mail-triage/internal/whitelist"
)

// CLIFlags contains the command line flags that override configuration
type CLIFlags struct {
	ConfigFile string
	RulesPath  string
	Provider   string
	Verbose    bool
	JSONLog    bool
	JSONOutput bool

	// UseStore attaches the configured record store to the triage service
	UseStore bool
}

// BuildCLIContainer creates and configures a dependency injection container for the CLI application
func BuildCLIContainer(flags *CLIFlags) (*dig.Container, error) {
	container := dig.New()

	// Register flags
	if err := container.Provide(func() *CLIFlags { return flags }); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(func(flags *CLIFlags) (*zap.Logger, error) {
		return logging.InitConsoleLogger(flags.Verbose, flags.JSONLog)
	}); err != nil {
		return nil, err
	}

	// Register configuration
	if err := container.Provide(newCLIConfig); err != nil {
		return nil, err
	}

	if err := provideTriage(container); err != nil {
		return nil, err
	}

	// Register record store, nil unless requested
	if err := container.Provide(func(flags *CLIFlags, f *factory.StoreFactory) (ports.RecordStore, error) {
		if !flags.UseStore {
			return nil, nil
		}
		return f.CreateRecordStore()
	}); err != nil {
		return nil, err
	}

	// Register triage service. Without a store nothing is skipped or saved.
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		classifier *core.Classifier,
		records ports.RecordStore,
		advisor core.ReplyAdvisor,
		senders *whitelist.Checker,
		sf *factory.StoreFactory,
	) (*core.TriageService, error) {
		if records == nil {
			opts := serviceOptions(cfg, 0)
			opts.SkipProcessed = false
			return core.NewTriageService(classifier, nil, advisor, senders, logger, opts), nil
		}
		ttl, err := sf.RecordTTL()
		if err != nil {
			return nil, err
		}
		return core.NewTriageService(classifier, records, advisor, senders, logger, serviceOptions(cfg, ttl)), nil
	}); err != nil {
		return nil, err
	}

	// Register email filter, always the CLI printer
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter(context.Background())
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// newCLIConfig loads configuration from the search path or an explicit file
// and applies command line overrides
func newCLIConfig(flags *CLIFlags, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, err
	}
	if flags.ConfigFile != "" {
		if err := cfg.SetConfigFile(flags.ConfigFile); err != nil {
			return nil, err
		}
	}
	if used := cfg.GetViper().ConfigFileUsed(); used != "" {
		logger.Debug("Loaded configuration from file", zap.String("file", used))
	}

	cfg.Set("server.filter_type", "cli")
	cfg.Set("cli.verbose", flags.Verbose)
	cfg.Set("cli.json", flags.JSONOutput)
	if flags.RulesPath != "" {
		cfg.Set("rules.path", flags.RulesPath)
	}
	if flags.Provider != "" {
		cfg.Set("llm.provider", flags.Provider)
	}
	return cfg, nil
}
