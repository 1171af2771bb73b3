package ports

import (
	"context"

	"github.com/mikey/mail-triage/internal/core"
)

// EmailFilter is a source of inbound mail that hands each message to the
// triage service
type EmailFilter interface {
	// ProcessMessage triages one message and returns the outcome
	ProcessMessage(ctx context.Context, msg *core.InboundMessage) (*core.TriageOutcome, error)

	// Start starts the email source
	Start() error

	// Stop stops the email source
	Stop() error
}
