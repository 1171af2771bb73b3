package factory

import (
	"context"
	"fmt"
	"os"

	"github.com/mikey/mail-triage/internal/adapters/filter"
	"github.com/mikey/mail-triage/internal/adapters/gmail"
	"github.com/mikey/mail-triage/internal/adapters/imap"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/ports"
	"go.uber.org/zap"
)

// FilterFactory creates email filters based on configuration
type FilterFactory struct {
	cfg     *config.Config
	logger  *zap.Logger
	service *core.TriageService
}

// NewFilterFactory creates a new filter factory
func NewFilterFactory(cfg *config.Config, logger *zap.Logger, service *core.TriageService) *FilterFactory {
	return &FilterFactory{
		cfg:     cfg,
		logger:  logger,
		service: service,
	}
}

// CreateEmailFilter creates an email filter based on the configuration
func (f *FilterFactory) CreateEmailFilter(ctx context.Context) (ports.EmailFilter, error) {
	serverCfg := f.cfg.GetServer()

	switch serverCfg.FilterType {
	case "postfix":
		return filter.NewPostfixFilter(f.service, f.logger, serverCfg), nil
	case "gmail":
		gmailCfg, err := f.cfg.GetGmail()
		if err != nil {
			return nil, err
		}
		mailbox, err := gmail.NewAPIMailbox(ctx, gmailCfg.CredentialsFile, gmailCfg.TokenFile, gmailCfg.User)
		if err != nil {
			return nil, err
		}
		return gmail.NewPoller(f.service, mailbox, gmailCfg, f.logger), nil
	case "imap":
		imapCfg, err := f.cfg.GetIMAP()
		if err != nil {
			return nil, err
		}
		return imap.NewPoller(f.service, imap.NewClientFetcher(imapCfg, f.logger), imapCfg, f.logger), nil
	case "cli":
		return filter.NewCliFilter(
			f.service,
			f.logger,
			os.Stdout,
			f.cfg.GetBool("cli.verbose"),
			f.cfg.GetBool("cli.json"),
		), nil
	default:
		return nil, fmt.Errorf("unsupported filter type: %s", serverCfg.FilterType)
	}
}
