package core

import (
	"github.com/mikey/mail-triage/internal/rules"
	"github.com/mikey/mail-triage/internal/utils"
)

// Classifier applies a rule set to emails. It holds no mutable state and is
// safe for concurrent use.
type Classifier struct {
	rules *rules.Rules
}

// NewClassifier creates a classifier for the given rule set
func NewClassifier(r *rules.Rules) *Classifier {
	return &Classifier{rules: r}
}

// Rules returns the rule set the classifier was built with
func (c *Classifier) Rules() *rules.Rules {
	return c.rules
}

// Classify scores, categorizes and inspects one email
func (c *Classifier) Classify(email *Email) *ClassificationResult {
	if email == nil {
		email = &Email{}
	}

	ev := ScoreEvidence(email, c.rules)
	category := SubjectCategory(email.Subject, c.rules)
	verdict, reason := InferReply(category, c.rules)

	return &ClassificationResult{
		IsVendorMatch:   ev.Matched,
		Score:           ev.Score,
		Evidence:        ev.Channels,
		SubjectCategory: category,
		Identifiers:     ExtractIdentifiers(email.Subject, c.rules),
		StampPosition:   LocateStamp(utils.StripHTML(email.Body), c.rules.FooterIndicators),
		NeedsReply:      verdict,
		Reason:          reason,
	}
}
