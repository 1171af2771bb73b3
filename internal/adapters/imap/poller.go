// Package imap polls an IMAP folder and triages recent messages.
package imap

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/mailparse"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

// Poller fetches recent messages from an IMAP folder every poll interval.
// Already triaged messages are skipped by the triage service.
type Poller struct {
	service *core.TriageService
	fetcher Fetcher
	cfg     config.IMAPConfig
	logger  *zap.Logger
	now     func() time.Time
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a new IMAP poller
func NewPoller(service *core.TriageService, fetcher Fetcher, cfg config.IMAPConfig, logger *zap.Logger) *Poller {
	return &Poller{
		service: service,
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Start begins polling in the background
func (p *Poller) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	p.logger.Info("IMAP poller starting",
		zap.String("server", p.cfg.Server),
		zap.String("folder", p.cfg.Folder),
		zap.Duration("interval", p.cfg.PollInterval))

	go p.run(ctx)
	return nil
}

// Stop stops polling and waits for the current pass to finish
func (p *Poller) Stop() error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	return nil
}

// ProcessMessage triages a single message
func (p *Poller) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (*core.TriageOutcome, error) {
	return p.service.Process(ctx, msg)
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	interval := p.cfg.PollInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Failed to poll IMAP folder", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Poll fetches messages received in the last since_days days and triages them
func (p *Poller) Poll(ctx context.Context) error {
	days := p.cfg.SinceDays
	if days <= 0 {
		days = 1
	}
	since := p.now().AddDate(0, 0, -days)

	messages, err := p.fetcher.FetchSince(ctx, since)
	if err != nil {
		return err
	}

	processed := 0
	for _, raw := range messages {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		outcome, err := p.handle(ctx, raw)
		if err != nil {
			p.logger.Error("Failed to triage IMAP message", zap.Uint32("uid", raw.UID), zap.Error(err))
			continue
		}
		if !outcome.Skipped {
			processed++
		}
	}

	p.logger.Debug("IMAP poll complete",
		zap.Int("fetched", len(messages)),
		zap.Int("triaged", processed))
	return nil
}

func (p *Poller) handle(ctx context.Context, raw RawMessage) (*core.TriageOutcome, error) {
	msg, err := mailparse.Parse(bytes.NewReader(raw.Data))
	if err != nil {
		return nil, err
	}
	if msg.Email.ID == "" {
		msg.Email.ID = fmt.Sprintf("%s/%d", p.cfg.Folder, raw.UID)
	}
	return p.service.Process(ctx, msg)
}
