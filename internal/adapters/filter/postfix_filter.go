package filter

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/emersion/go-smtp"
	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/mailparse"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
)

const processTimeout = 30 * time.Second

// PostfixFilter implements a Postfix content filter. Each message is triaged,
// annotated with triage headers and relayed to the downstream MTA.
type PostfixFilter struct {
	service *core.TriageService
	logger  *zap.Logger
	cfg     config.ServerConfig
	server  *smtp.Server
}

// NewPostfixFilter creates a new Postfix content filter
func NewPostfixFilter(service *core.TriageService, logger *zap.Logger, cfg config.ServerConfig) *PostfixFilter {
	return &PostfixFilter{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
}

// Start starts the SMTP listener
func (f *PostfixFilter) Start() error {
	f.server = smtp.NewServer(&smtpBackend{filter: f})

	f.server.Addr = f.cfg.ListenAddress
	f.server.Domain = "localhost"
	f.server.ReadTimeout = 30 * time.Second
	f.server.WriteTimeout = 30 * time.Second
	f.server.MaxMessageBytes = 30 * 1024 * 1024
	f.server.MaxRecipients = 50
	f.server.AllowInsecureAuth = true

	f.logger.Info("Postfix filter starting", zap.String("address", f.cfg.ListenAddress))

	go func() {
		if err := f.server.ListenAndServe(); err != nil && !errors.Is(err, smtp.ErrServerClosed) {
			f.logger.Error("SMTP server error", zap.Error(err))
		}
	}()

	return nil
}

// Stop stops the SMTP listener
func (f *PostfixFilter) Stop() error {
	if f.server != nil {
		return f.server.Close()
	}
	return nil
}

// ProcessMessage triages a message without relaying it
func (f *PostfixFilter) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (*core.TriageOutcome, error) {
	return f.service.Process(ctx, msg)
}

// filterMessage triages a raw message and returns it with triage headers.
// Messages that cannot be parsed or triaged are passed through with an
// error header so no mail is lost.
func (f *PostfixFilter) filterMessage(ctx context.Context, sender string, raw []byte) ([]byte, error) {
	msg, err := mailparse.Parse(bytes.NewReader(raw))
	if err != nil {
		f.logger.Warn("Failed to parse message, relaying unchanged", zap.Error(err), zap.String("sender", sender))
		return f.annotate(raw, nil, err)
	}
	if msg.Email.From == "" {
		msg.Email.From = sender
	}

	outcome, err := f.service.Process(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to triage message",
			zap.Error(err),
			zap.String("sender", msg.Email.From),
			zap.String("message_id", msg.Email.ID))
	}
	return f.annotate(raw, outcome, err)
}

// annotate prepends triage headers to a raw message and optionally tags the
// subject of messages that need a reply. The body is copied verbatim.
func (f *PostfixFilter) annotate(raw []byte, outcome *core.TriageOutcome, triageErr error) ([]byte, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	th, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, fmt.Errorf("failed to read message header: %w", err)
	}
	header := gomail.Header{Header: gomessage.Header{Header: th}}
	names := f.cfg.Headers

	switch {
	case triageErr != nil:
		header.Set(names.Error, sanitizeHeaderValue(triageErr.Error()))
	case outcome == nil || outcome.Skipped:
	default:
		result := outcome.Classification
		header.Set(names.Vendor, strconv.FormatBool(result.IsVendorMatch))
		header.Set(names.Category, result.SubjectCategory)
		header.Set(names.NeedsReply, result.NeedsReply.String())
		header.Set(names.Reason, sanitizeHeaderValue(result.Reason))
		if len(result.Identifiers) > 0 {
			header.Set(names.Identifiers, strings.Join(result.Identifiers, ", "))
		}

		if f.cfg.TagSubject && f.cfg.SubjectTag != "" && result.NeedsReply == core.VerdictTrue {
			subject, err := header.Subject()
			if err != nil {
				subject = header.Get("Subject")
			}
			if !strings.HasPrefix(subject, f.cfg.SubjectTag) {
				header.SetSubject(f.cfg.SubjectTag + subject)
			}
		}
	}

	var out bytes.Buffer
	if err := textproto.WriteHeader(&out, header.Header.Header); err != nil {
		return nil, fmt.Errorf("failed to write message header: %w", err)
	}
	if _, err := io.Copy(&out, br); err != nil {
		return nil, fmt.Errorf("failed to copy message body: %w", err)
	}
	return out.Bytes(), nil
}

// relay sends the processed message to the downstream MTA using go-smtp
func (f *PostfixFilter) relay(sender string, recipients []string, data []byte) error {
	addr := net.JoinHostPort(f.cfg.RelayAddress, strconv.Itoa(f.cfg.RelayPort))

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	conn, err := net.DialTimeout("tcp", addr, 10*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to relay: %w", err)
	}
	if err := conn.SetDeadline(time.Now().Add(30 * time.Second)); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set connection deadline: %w", err)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(hostname); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}
	if err := c.Mail(sender, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}

	recipientOK := false
	for _, recipient := range recipients {
		if err := c.Rcpt(recipient, nil); err != nil {
			f.logger.Warn("RCPT TO failed for recipient",
				zap.String("recipient", recipient),
				zap.Error(err))
			continue
		}
		recipientOK = true
	}
	if !recipientOK {
		return errors.New("all recipients were rejected")
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(data); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		f.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

func sanitizeHeaderValue(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// smtpBackend implements the go-smtp Backend interface
type smtpBackend struct {
	filter *PostfixFilter
}

// NewSession creates a new SMTP session
func (b *smtpBackend) NewSession(_ *smtp.Conn) (smtp.Session, error) {
	return &smtpSession{filter: b.filter}, nil
}

// smtpSession implements the go-smtp Session interface
type smtpSession struct {
	filter     *PostfixFilter
	sender     string
	recipients []string
}

// Reset resets the session state
func (s *smtpSession) Reset() {
	s.sender = ""
	s.recipients = nil
}

// Mail sets the sender address
func (s *smtpSession) Mail(from string, _ *smtp.MailOptions) error {
	s.sender = from
	return nil
}

// Rcpt adds a recipient
func (s *smtpSession) Rcpt(to string, _ *smtp.RcptOptions) error {
	s.recipients = append(s.recipients, to)
	return nil
}

// Data triages and relays the message
func (s *smtpSession) Data(r io.Reader) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		s.filter.logger.Error("Failed to read message data", zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	filtered, err := s.filter.filterMessage(ctx, s.sender, raw)
	if err != nil {
		s.filter.logger.Error("Failed to annotate message, relaying unchanged", zap.Error(err))
		filtered = raw
	}

	if !s.filter.cfg.RelayEnabled {
		s.filter.logger.Warn("Relay disabled, message dropped after triage", zap.String("sender", s.sender))
		return nil
	}
	if err := s.filter.relay(s.sender, s.recipients, filtered); err != nil {
		s.filter.logger.Error("Failed to relay message",
			zap.Error(err),
			zap.String("sender", s.sender))
		return err
	}
	return nil
}

// Logout handles SMTP logout
func (s *smtpSession) Logout() error {
	return nil
}
