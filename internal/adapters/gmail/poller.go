// Package gmail polls a Gmail mailbox and triages new messages.
package gmail

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	gmailapi "google.golang.org/api/gmail/v1"

	"github.com/mikey/mail-triage/internal/adapters/mailparse"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

const sentLabel = "SENT"

// Poller lists messages matching a query every poll interval and triages
// them with a bounded pool of workers
type Poller struct {
	service *core.TriageService
	mailbox Mailbox
	cfg     config.GmailConfig
	logger  *zap.Logger

	mu      sync.Mutex
	account string
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewPoller creates a new Gmail poller
func NewPoller(service *core.TriageService, mailbox Mailbox, cfg config.GmailConfig, logger *zap.Logger) *Poller {
	return &Poller{
		service: service,
		mailbox: mailbox,
		cfg:     cfg,
		logger:  logger,
		account: strings.ToLower(cfg.AccountAddress),
	}
}

// Start begins polling in the background
func (p *Poller) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	if p.accountAddress() == "" {
		addr, err := p.mailbox.AccountAddress(ctx)
		if err != nil {
			p.logger.Warn("Could not detect account address, replied threads will only be detected by label", zap.Error(err))
		} else {
			p.setAccountAddress(addr)
			p.logger.Info("Detected account address", zap.String("address", addr))
		}
	}

	p.logger.Info("Gmail poller starting",
		zap.String("query", p.cfg.Query),
		zap.Duration("interval", p.cfg.PollInterval),
		zap.Int("workers", p.cfg.Workers))

	go p.run(ctx)
	return nil
}

// Stop stops polling and waits for in-flight messages
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
		p.logger.Debug("Running periodic email check")
		if err := p.Poll(ctx); err != nil && ctx.Err() == nil {
			p.logger.Error("Failed to poll Gmail", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

// Poll runs one listing pass and triages every listed message
func (p *Poller) Poll(ctx context.Context) error {
	ids, err := p.mailbox.ListMessageIDs(ctx, p.cfg.Query, p.cfg.BatchSize)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		p.logger.Debug("No new messages found")
		return nil
	}
	p.logger.Info("Found messages, processing", zap.Int("count", len(ids)))

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, id := range ids {
		g.Go(func() error {
			if err := p.handle(ctx, id); err != nil {
				p.logger.Error("Failed to triage Gmail message", zap.String("message_id", id), zap.Error(err))
			}
			return nil
		})
	}
	return g.Wait()
}

func (p *Poller) handle(ctx context.Context, id string) error {
	seen, err := p.service.Seen(ctx, id)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	msg, err := p.mailbox.GetMessage(ctx, id)
	if err != nil {
		return err
	}

	if msg.ThreadId != "" {
		thread, err := p.mailbox.GetThread(ctx, msg.ThreadId)
		if err != nil {
			p.logger.Warn("Failed to fetch thread, triaging anyway",
				zap.String("thread_id", msg.ThreadId),
				zap.Error(err))
		} else if lastMessageFromAccount(thread, p.accountAddress()) {
			p.logger.Debug("Skipping thread whose last message is ours",
				zap.String("message_id", id),
				zap.String("thread_id", msg.ThreadId))
			return p.service.MarkSkipped(ctx, &core.Email{
				ID:       msg.Id,
				ThreadID: msg.ThreadId,
				From:     mailparse.GmailHeader(msg.Payload, "From"),
				Subject:  mailparse.GmailHeader(msg.Payload, "Subject"),
			})
		}
	}

	_, err = p.service.Process(ctx, toInbound(msg))
	return err
}

func (p *Poller) accountAddress() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.account
}

func (p *Poller) setAccountAddress(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.account = strings.ToLower(addr)
}

// toInbound converts a full Gmail message into an inbound message
func toInbound(msg *gmailapi.Message) *core.InboundMessage {
	return &core.InboundMessage{
		Email: &core.Email{
			ID:       msg.Id,
			ThreadID: msg.ThreadId,
			From:     mailparse.GmailHeader(msg.Payload, "From"),
			Subject:  mailparse.GmailHeader(msg.Payload, "Subject"),
		},
		Payload: mailparse.FromGmail(msg.Payload),
	}
}

// lastMessageFromAccount reports whether the newest message of a thread was
// sent by the account, either by label or by its From header
func lastMessageFromAccount(thread *gmailapi.Thread, account string) bool {
	if thread == nil || len(thread.Messages) == 0 {
		return false
	}

	last := thread.Messages[0]
	for _, msg := range thread.Messages[1:] {
		if msg.InternalDate >= last.InternalDate {
			last = msg
		}
	}

	for _, label := range last.LabelIds {
		if strings.EqualFold(label, sentLabel) {
			return true
		}
	}

	if account == "" {
		return false
	}
	from := strings.ToLower(mailparse.GmailHeader(last.Payload, "From"))
	return strings.Contains(from, account)
}
