package core

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Skip reasons reported in TriageOutcome.SkipReason
const (
	SkipIgnoredSender    = "ignored sender"
	SkipAlreadyProcessed = "already processed"
)

const advisorReasonPrefix = "Advisor: "

// SenderMatcher reports senders that must not be triaged, typically the
// mailbox's own addresses
type SenderMatcher interface {
	Ignores(from string) bool
}

// ServiceOptions tunes the triage service
type ServiceOptions struct {
	SkipProcessed  bool
	ConsultAdvisor bool
	RecordTTL      time.Duration
}

// TriageService classifies inbound messages and records the outcome
type TriageService struct {
	classifier *Classifier
	store      RecordRepository
	advisor    ReplyAdvisor
	senders    SenderMatcher
	logger     *zap.Logger
	opts       ServiceOptions
	now        func() time.Time
}

// NewTriageService creates a new triage service. The store, advisor and
// sender matcher may be nil.
func NewTriageService(
	classifier *Classifier,
	store RecordRepository,
	advisor ReplyAdvisor,
	senders SenderMatcher,
	logger *zap.Logger,
	opts ServiceOptions,
) *TriageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TriageService{
		classifier: classifier,
		store:      store,
		advisor:    advisor,
		senders:    senders,
		logger:     logger,
		opts:       opts,
		now:        time.Now,
	}
}

// Classifier returns the classifier used by the service
func (s *TriageService) Classifier() *Classifier {
	return s.classifier
}

// Process triages one inbound message
func (s *TriageService) Process(ctx context.Context, msg *InboundMessage) (*TriageOutcome, error) {
	if msg == nil || msg.Email == nil {
		return nil, errors.New("inbound message has no email")
	}
	email := *msg.Email

	if s.senders != nil && s.senders.Ignores(email.From) {
		s.logger.Debug("Skipping message from ignored sender",
			zap.String("message_id", email.ID),
			zap.String("sender", email.From))
		return &TriageOutcome{Skipped: true, SkipReason: SkipIgnoredSender}, nil
	}

	seen, err := s.Seen(ctx, email.ID)
	if err != nil {
		return nil, err
	}
	if seen {
		s.logger.Debug("Skipping already processed message", zap.String("message_id", email.ID))
		return &TriageOutcome{Skipped: true, SkipReason: SkipAlreadyProcessed}, nil
	}

	payload := msg.Payload
	if payload == nil && email.Body != "" {
		payload = bodyPart(email.Body)
	}
	reply := ExtractLatestReply(payload)
	if email.Body == "" {
		email.Body = reply.OriginalBody
	}
	email.Subject = stripReplyPrefix(email.Subject)

	result := s.classifier.Classify(&email)
	outcome := &TriageOutcome{Classification: result, Reply: reply}

	if result.NeedsReply == VerdictUnknown && s.opts.ConsultAdvisor && s.advisor != nil {
		outcome.AdvisorUsed = true
		s.consultAdvisor(ctx, &email, reply.CleanReply, result)
	}

	s.logger.Info("Triaged message",
		zap.String("message_id", email.ID),
		zap.String("sender", email.From),
		zap.Bool("vendor_match", result.IsVendorMatch),
		zap.Float64("score", result.Score),
		zap.String("category", result.SubjectCategory),
		zap.Stringer("needs_reply", result.NeedsReply))

	if s.store != nil && email.ID != "" {
		if err := s.store.Save(ctx, s.record(&email, reply, result)); err != nil {
			return nil, fmt.Errorf("failed to save triage record: %w", err)
		}
	}

	return outcome, nil
}

// Seen reports whether a live record exists for id. It is false whenever
// processed messages are not skipped or no store is configured.
func (s *TriageService) Seen(ctx context.Context, id string) (bool, error) {
	if !s.opts.SkipProcessed || s.store == nil || id == "" {
		return false, nil
	}
	_, err := s.store.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrRecordNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("failed to look up triage record: %w", err)
	}
}

// MarkSkipped saves a record without a classification for a message the
// source chose not to triage, so later passes find it already processed.
func (s *TriageService) MarkSkipped(ctx context.Context, email *Email) error {
	if s.store == nil || email == nil || email.ID == "" {
		return nil
	}
	rec := s.record(email, ReplyExtraction{}, nil)
	if err := s.store.Save(ctx, rec); err != nil {
		return fmt.Errorf("failed to save skipped record: %w", err)
	}
	return nil
}

// RecordDecision stores the human answer to whether a message needs a reply
func (s *TriageService) RecordDecision(ctx context.Context, id string, needsReply bool) error {
	if s.store == nil {
		return errors.New("no record store configured")
	}
	if err := s.store.UpdateDecision(ctx, id, needsReply); err != nil {
		return fmt.Errorf("failed to record decision for %s: %w", id, err)
	}
	s.logger.Info("Recorded reply decision",
		zap.String("message_id", id),
		zap.Bool("needs_reply", needsReply))
	return nil
}

// consultAdvisor replaces an unknown verdict with a definite advisor answer.
// Advisor failures leave the verdict unknown.
func (s *TriageService) consultAdvisor(ctx context.Context, email *Email, cleanReply string, result *ClassificationResult) {
	verdict, err := s.advisor.AdviseReply(ctx, email, cleanReply)
	if err != nil {
		s.logger.Warn("Reply advisor failed",
			zap.String("message_id", email.ID),
			zap.Error(err))
		return
	}
	switch verdict {
	case VerdictTrue:
		result.NeedsReply = verdict
		result.Reason = advisorReasonPrefix + "a reply is needed."
	case VerdictFalse:
		result.NeedsReply = verdict
		result.Reason = advisorReasonPrefix + "no reply is needed."
	default:
		s.logger.Debug("Reply advisor gave no definite answer", zap.String("message_id", email.ID))
	}
}

func (s *TriageService) record(email *Email, reply ReplyExtraction, result *ClassificationResult) *TriageRecord {
	now := s.now()
	rec := &TriageRecord{
		ID:             email.ID,
		ThreadID:       email.ThreadID,
		From:           email.From,
		Subject:        email.Subject,
		OriginalBody:   reply.OriginalBody,
		CleanReply:     reply.CleanReply,
		Classification: result,
		ProcessedAt:    now,
	}
	if s.opts.RecordTTL > 0 {
		rec.ExpiresAt = now.Add(s.opts.RecordTTL)
	}
	return rec
}

// bodyPart wraps a bare body so it can go through reply extraction
func bodyPart(body string) *Part {
	mimeType := mimeTextPlain
	if strings.Contains(body, "<") {
		mimeType = mimeTextHTML
	}
	return &Part{MimeType: mimeType, Data: base64.URLEncoding.EncodeToString([]byte(body))}
}

// stripReplyPrefix removes one leading "re:" marker
func stripReplyPrefix(subject string) string {
	if len(subject) >= 3 && strings.EqualFold(subject[:3], "re:") {
		return strings.TrimSpace(subject[3:])
	}
	return subject
}
