package core

import (
	"encoding/json"
	"time"
)

// Email represents an inbound email record
type Email struct {
	ID       string
	ThreadID string
	From     string
	Subject  string
	Body     string
}

// EmailFromMap builds an Email from a loosely typed record such as a decoded
// JSON object. Absent or non-string fields become empty strings. The body is
// read from "original_body", falling back to "body".
func EmailFromMap(m map[string]any) *Email {
	email := &Email{
		ID:       stringField(m, "id"),
		ThreadID: stringField(m, "thread_id"),
		From:     stringField(m, "from"),
		Subject:  stringField(m, "subject"),
		Body:     stringField(m, "original_body"),
	}
	if email.Body == "" {
		email.Body = stringField(m, "body")
	}
	return email
}

func stringField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

// StampPosition is the bucketed relative position of the company stamp
type StampPosition string

const (
	StampHeader StampPosition = "header"
	StampBody   StampPosition = "body"
	StampFooter StampPosition = "footer"
	StampNone   StampPosition = "none"
)

// Verdict is a tri-state answer to "does this email need a reply"
type Verdict int

const (
	VerdictUnknown Verdict = iota
	VerdictTrue
	VerdictFalse
)

// VerdictOf converts a definite boolean into a Verdict
func VerdictOf(b bool) Verdict {
	if b {
		return VerdictTrue
	}
	return VerdictFalse
}

func (v Verdict) String() string {
	switch v {
	case VerdictTrue:
		return "true"
	case VerdictFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Bool returns the verdict as a nullable boolean
func (v Verdict) Bool() *bool {
	switch v {
	case VerdictTrue:
		b := true
		return &b
	case VerdictFalse:
		b := false
		return &b
	default:
		return nil
	}
}

// MarshalJSON encodes the verdict as true, false or null
func (v Verdict) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Bool())
}

// UnmarshalJSON decodes true, false or null
func (v *Verdict) UnmarshalJSON(data []byte) error {
	var b *bool
	if err := json.Unmarshal(data, &b); err != nil {
		return err
	}
	if b == nil {
		*v = VerdictUnknown
		return nil
	}
	*v = VerdictOf(*b)
	return nil
}

// Evidence channel names as reported in ClassificationResult.Evidence
const (
	EvidenceFromDomain = "from_domain"
	EvidenceSenderName = "sender_name"
	EvidenceHost       = "host"
	EvidencePhrase     = "phrase"
)

// ClassificationResult is the outcome of classifying one email
type ClassificationResult struct {
	IsVendorMatch   bool          `json:"is_vendor_match"`
	Score           float64       `json:"score"`
	Evidence        []string      `json:"evidence"`
	SubjectCategory string        `json:"subject_category"`
	Identifiers     []string      `json:"identifiers"`
	StampPosition   StampPosition `json:"stamp_position"`
	NeedsReply      Verdict       `json:"needs_reply"`
	Reason          string        `json:"reason"`
}

// Part is a node of a MIME part tree. Data holds base64url-encoded content.
type Part struct {
	MimeType string
	Data     string
	Parts    []*Part
}

// ReplyExtraction holds the raw body and the newest reply recovered from it
type ReplyExtraction struct {
	OriginalBody string `json:"original_body"`
	CleanReply   string `json:"clean_reply"`
}

// InboundMessage is a message handed to the triage service by an email source
type InboundMessage struct {
	Email   *Email
	Payload *Part
}

// TriageRecord is the persisted result of triaging one message
type TriageRecord struct {
	ID             string
	ThreadID       string
	From           string
	Subject        string
	OriginalBody   string
	CleanReply     string
	Classification *ClassificationResult
	// Decision is the human answer to "needs response"; nil until recorded
	Decision    *bool
	ProcessedAt time.Time
	ExpiresAt   time.Time
}

// TriageOutcome is returned by the triage service for each processed message
type TriageOutcome struct {
	Skipped        bool
	SkipReason     string
	Classification *ClassificationResult
	Reply          ReplyExtraction
	AdvisorUsed    bool
}
