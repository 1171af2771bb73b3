package filter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mikey/mail-triage/internal/core"
	"go.uber.org/zap"
)

const previewLimit = 500

// CliFilter triages messages handed to it by the command line and prints the
// outcome
type CliFilter struct {
	service *core.TriageService
	logger  *zap.Logger
	out     io.Writer
	verbose bool
	asJSON  bool
}

// NewCliFilter creates a new CLI filter
func NewCliFilter(service *core.TriageService, logger *zap.Logger, out io.Writer, verbose, asJSON bool) *CliFilter {
	return &CliFilter{
		service: service,
		logger:  logger,
		out:     out,
		verbose: verbose,
		asJSON:  asJSON,
	}
}

// cliReport is the JSON form of a triaged message
type cliReport struct {
	ID             string                     `json:"id"`
	From           string                     `json:"from"`
	Subject        string                     `json:"subject"`
	Skipped        bool                       `json:"skipped,omitempty"`
	SkipReason     string                     `json:"skip_reason,omitempty"`
	Classification *core.ClassificationResult `json:"classification,omitempty"`
	CleanReply     string                     `json:"clean_reply,omitempty"`
	AdvisorUsed    bool                       `json:"advisor_used"`
}

// ProcessMessage triages a message and prints the result
func (f *CliFilter) ProcessMessage(ctx context.Context, msg *core.InboundMessage) (*core.TriageOutcome, error) {
	f.logger.Debug("Processing message", zap.String("sender", msg.Email.From))

	startTime := time.Now()
	outcome, err := f.service.Process(ctx, msg)
	if err != nil {
		f.logger.Error("Failed to triage message", zap.Error(err))
		return nil, err
	}
	duration := time.Since(startTime)

	if f.asJSON {
		return outcome, f.writeJSON(msg.Email, outcome)
	}
	f.writeSummary(msg.Email, outcome, duration)
	return outcome, nil
}

func (f *CliFilter) writeJSON(email *core.Email, outcome *core.TriageOutcome) error {
	report := cliReport{
		ID:             email.ID,
		From:           email.From,
		Subject:        email.Subject,
		Skipped:        outcome.Skipped,
		SkipReason:     outcome.SkipReason,
		Classification: outcome.Classification,
		CleanReply:     outcome.Reply.CleanReply,
		AdvisorUsed:    outcome.AdvisorUsed,
	}
	enc := json.NewEncoder(f.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

func (f *CliFilter) writeSummary(email *core.Email, outcome *core.TriageOutcome, duration time.Duration) {
	w := f.out
	fmt.Fprintf(w, "\n=== Email Summary ===\n")
	fmt.Fprintf(w, "Message-ID: %s\n", email.ID)
	fmt.Fprintf(w, "From: %s\n", email.From)
	fmt.Fprintf(w, "Subject: %s\n", email.Subject)

	if outcome.Skipped {
		fmt.Fprintf(w, "\nSkipped: %s\n", outcome.SkipReason)
		return
	}

	if f.verbose {
		preview := outcome.Reply.CleanReply
		if len(preview) > previewLimit {
			preview = strings.ToValidUTF8(preview[:previewLimit], "") + "..."
		}
		fmt.Fprintf(w, "\nLatest reply:\n%s\n", preview)
	}

	result := outcome.Classification
	fmt.Fprintf(w, "\n=== Results ===\n")
	fmt.Fprintf(w, "Vendor match: %t\n", result.IsVendorMatch)
	fmt.Fprintf(w, "Score: %.2f\n", result.Score)
	fmt.Fprintf(w, "Evidence: %s\n", strings.Join(result.Evidence, ", "))
	fmt.Fprintf(w, "Subject category: %s\n", result.SubjectCategory)
	fmt.Fprintf(w, "Identifiers: %s\n", strings.Join(result.Identifiers, ", "))
	fmt.Fprintf(w, "Stamp position: %s\n", result.StampPosition)
	fmt.Fprintf(w, "Needs reply: %s\n", result.NeedsReply)
	fmt.Fprintf(w, "Reason: %s\n", result.Reason)
	if outcome.AdvisorUsed {
		fmt.Fprintf(w, "Advisor consulted: yes\n")
	}
	fmt.Fprintf(w, "Processing time: %v\n", duration)
}

// Start is a no-op for the CLI filter
func (f *CliFilter) Start() error {
	return nil
}

// Stop is a no-op for the CLI filter
func (f *CliFilter) Stop() error {
	return nil
}
