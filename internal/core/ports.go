package core

import (
	"context"
	"errors"
)

// ErrRecordNotFound is returned by a RecordRepository for unknown or expired IDs
var ErrRecordNotFound = errors.New("triage record not found")

// ReplyAdvisor is an optional external collaborator consulted when the rule
// set cannot decide whether an email needs a reply
type ReplyAdvisor interface {
	// AdviseReply returns VerdictUnknown when it cannot decide
	AdviseReply(ctx context.Context, email *Email, cleanReply string) (Verdict, error)
}

// RecordRepository stores triage records keyed by message ID
type RecordRepository interface {
	// Get retrieves a record; it returns an error wrapping ErrRecordNotFound
	// when no live record exists
	Get(ctx context.Context, id string) (*TriageRecord, error)

	// Save inserts or replaces a record
	Save(ctx context.Context, record *TriageRecord) error

	// UpdateDecision stores the human reply decision for a record
	UpdateDecision(ctx context.Context, id string, needsReply bool) error

	// Delete removes a record
	Delete(ctx context.Context, id string) error

	// Cleanup removes expired records
	Cleanup(ctx context.Context) error
}
