package di

import (
	"context"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/factory"
	"github.com/mikey/mail-triage/internal/logging"
	"github.com/mikey/mail-triage/internal/ports"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/mikey/mail-triage/internal/whitelist"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	if err := provideTriage(container); err != nil {
		return nil, err
	}

	// Register record store
	if err := container.Provide(func(f *factory.StoreFactory) (ports.RecordStore, error) {
		return f.CreateRecordStore()
	}); err != nil {
		return nil, err
	}

	// Register triage service
	if err := container.Provide(func(
		cfg *config.Config,
		logger *zap.Logger,
		classifier *core.Classifier,
		records ports.RecordStore,
		advisor core.ReplyAdvisor,
		senders *whitelist.Checker,
		sf *factory.StoreFactory,
	) (*core.TriageService, error) {
		ttl, err := sf.RecordTTL()
		if err != nil {
			return nil, err
		}
		return core.NewTriageService(classifier, records, advisor, senders, logger, serviceOptions(cfg, ttl)), nil
	}); err != nil {
		return nil, err
	}

	// Register email filter
	if err := container.Provide(func(f *factory.FilterFactory) (ports.EmailFilter, error) {
		return f.CreateEmailFilter(context.Background())
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// provideTriage registers the factories and triage collaborators shared by
// the daemon and the CLI. Config and logger must already be provided.
func provideTriage(container *dig.Container) error {
	// Register factories
	for _, constructor := range []interface{}{
		factory.NewStoreFactory,
		factory.NewAdvisorFactory,
		factory.NewFilterFactory,
	} {
		if err := container.Provide(constructor); err != nil {
			return err
		}
	}

	// Register text processor
	if err := container.Provide(utils.NewTextProcessor); err != nil {
		return err
	}

	// Register rule set and classifier
	if err := container.Provide(factory.LoadRules); err != nil {
		return err
	}
	if err := container.Provide(core.NewClassifier); err != nil {
		return err
	}

	// Register reply advisor, nil when no provider is configured
	if err := container.Provide(func(f *factory.AdvisorFactory) (core.ReplyAdvisor, error) {
		return f.CreateAdvisor(context.Background())
	}); err != nil {
		return err
	}

	// Register ignored senders
	return container.Provide(func(cfg *config.Config, logger *zap.Logger) *whitelist.Checker {
		senders := cfg.GetTriage().IgnoredSenders
		if len(senders) > 0 {
			logger.Info("Loaded ignored senders", zap.Strings("senders", senders))
		}
		return whitelist.NewChecker(senders, logger)
	})
}

func serviceOptions(cfg *config.Config, ttl time.Duration) core.ServiceOptions {
	triageCfg := cfg.GetTriage()
	return core.ServiceOptions{
		SkipProcessed:  triageCfg.SkipProcessed,
		ConsultAdvisor: triageCfg.ConsultAdvisor,
		RecordTTL:      ttl,
	}
}
