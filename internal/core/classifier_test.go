package core

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-triage/internal/rules"
)

const testRuleSet = `
vendor_detection:
  from_domains: [acmefreight.com]
  sender_names_contains: [Acme Freight]
  body_phrases: [Load Tender]
  url_host_contains: [carrier360]
  evidence_weighting:
    from_domain_match: 3
    host_contains_match: 2
    phrase_match: 1
    sender_name_match: 2
  threshold: 3
subject_patterns:
  ID_PATTERN: '#(\d+)'
  LOAD_OFFER: 'load offer'
  OFFER: 'offer'
  STATUS_UPDATE: 'status'
  BOTH: 'both'
reply_heuristics:
  requires_reply_true_if: [LOAD_OFFER, BOTH]
  requires_reply_false_if: [STATUS_UPDATE, BOTH]
company_stamp:
  footer_indicators: [Acme Freight Inc, powered by carrier 360]
`

func loadRules(t *testing.T, doc string) *rules.Rules {
	t.Helper()
	r, err := rules.Load(strings.NewReader(doc))
	require.NoError(t, err)
	return r
}

func TestScoreEvidence(t *testing.T) {
	r := loadRules(t, testRuleSet)

	tests := []struct {
		name     string
		email    *Email
		score    float64
		channels []string
		matched  bool
	}{
		{
			name:     "domain only reaches threshold",
			email:    &Email{From: "Dispatch <dispatch@ops.AcmeFreight.com>"},
			score:    3,
			channels: []string{EvidenceFromDomain},
			matched:  true,
		},
		{
			name:     "sender name is case sensitive",
			email:    &Email{From: "acme freight <a@b.org>"},
			score:    0,
			channels: []string{},
		},
		{
			name:     "sender name alone is below threshold",
			email:    &Email{From: "Acme Freight <noreply@mailer.org>"},
			score:    2,
			channels: []string{EvidenceSenderName},
		},
		{
			name:     "host and phrase",
			email:    &Email{From: "x@y.org", Body: `<p>New LOAD tender</p><a href="https://app.Carrier360.com/t/1">open</a>`},
			score:    3,
			channels: []string{EvidenceHost, EvidencePhrase},
			matched:  true,
		},
		{
			name:     "channel contributes once",
			email:    &Email{Body: "load tender load tender load tender"},
			score:    1,
			channels: []string{EvidencePhrase},
		},
		{
			name:     "phrase inside script does not count",
			email:    &Email{Body: "<script>var s = 'load tender';</script>hello"},
			score:    0,
			channels: []string{},
		},
		{
			name:     "no address in from",
			email:    &Email{From: "acmefreight.com"},
			score:    0,
			channels: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := ScoreEvidence(tt.email, r)
			assert.Equal(t, tt.score, ev.Score)
			assert.Equal(t, tt.channels, ev.Channels)
			assert.Equal(t, tt.matched, ev.Matched)
		})
	}
}

func TestScoreEvidenceThresholdBoundary(t *testing.T) {
	r := loadRules(t, strings.Replace(testRuleSet, "threshold: 3", "threshold: 2", 1))

	ev := ScoreEvidence(&Email{From: "Acme Freight <x@y.org>"}, r)
	assert.Equal(t, 2.0, ev.Score)
	assert.True(t, ev.Matched)

	ev = ScoreEvidence(&Email{Body: "load tender"}, r)
	assert.False(t, ev.Matched)
}

func TestSubjectCategory(t *testing.T) {
	r := loadRules(t, testRuleSet)

	tests := []struct {
		subject string
		want    string
	}{
		{subject: "New LOAD OFFER #123", want: "LOAD_OFFER"},
		{subject: "Special offer for you", want: "OFFER"},
		{subject: "Status of delivery", want: "STATUS_UPDATE"},
		{subject: "", want: rules.Other},
		{subject: "Hello", want: rules.Other},
	}

	for _, tt := range tests {
		t.Run(tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, SubjectCategory(tt.subject, r))
		})
	}
}

func TestSubjectCategoryDeclarationOrderWins(t *testing.T) {
	swapped := strings.Replace(testRuleSet,
		"  LOAD_OFFER: 'load offer'\n  OFFER: 'offer'\n",
		"  OFFER: 'offer'\n  LOAD_OFFER: 'load offer'\n", 1)
	require.NotEqual(t, testRuleSet, swapped)

	assert.Equal(t, "LOAD_OFFER", SubjectCategory("load offer", loadRules(t, testRuleSet)))
	assert.Equal(t, "OFFER", SubjectCategory("load offer", loadRules(t, swapped)))
}

func TestSubjectCategoryEmptyPatternMatchesEmptySubject(t *testing.T) {
	doc := strings.Replace(testRuleSet, "  LOAD_OFFER: 'load offer'\n", "  ANYTHING: '^$'\n  LOAD_OFFER: 'load offer'\n", 1)
	assert.Equal(t, "ANYTHING", SubjectCategory("", loadRules(t, doc)))
}

func TestExtractIdentifiers(t *testing.T) {
	r := loadRules(t, testRuleSet)

	assert.Equal(t, []string{"123", "456"}, ExtractIdentifiers("Load #123 and #456", r))
	assert.Equal(t, []string{"7", "7"}, ExtractIdentifiers("#7 again #7", r))
	assert.Equal(t, []string{}, ExtractIdentifiers("", r))
	assert.Equal(t, []string{}, ExtractIdentifiers("no ids", r))

	whole := loadRules(t, strings.Replace(testRuleSet, `ID_PATTERN: '#(\d+)'`, `ID_PATTERN: 'L\d+'`, 1))
	assert.Equal(t, []string{"L12", "L34"}, ExtractIdentifiers("L12/L34 l56", whole))

	optional := loadRules(t, strings.Replace(testRuleSet, `ID_PATTERN: '#(\d+)'`, `ID_PATTERN: '\d*'`, 1))
	assert.Equal(t, []string{""}, ExtractIdentifiers("", optional))
}

func TestLocateStamp(t *testing.T) {
	indicator := "STAMP"
	at := func(index int) string {
		return strings.Repeat("a", index) + indicator + strings.Repeat("b", 100-index-len(indicator))
	}

	require.Len(t, at(95), 100)
	assert.Equal(t, StampFooter, LocateStamp(at(95), []string{"stamp"}))
	assert.Equal(t, StampHeader, LocateStamp(at(15), []string{"stamp"}))
	assert.Equal(t, StampBody, LocateStamp(at(50), []string{"stamp"}))
	assert.Equal(t, StampNone, LocateStamp("nothing here", []string{"stamp"}))
	assert.Equal(t, StampNone, LocateStamp("", []string{"stamp"}))
}

func TestLocateStampUsesLastOccurrence(t *testing.T) {
	text := "Acme Freight Inc " + strings.Repeat("x", 80) + " Acme Freight Inc"
	assert.Equal(t, StampFooter, LocateStamp(text, []string{"acme freight inc"}))

	multi := "alpha " + strings.Repeat("x", 40) + " omega" + strings.Repeat("y", 60)
	assert.Equal(t, StampBody, LocateStamp(multi, []string{"omega", "alpha"}))
}

func TestInferReply(t *testing.T) {
	r := loadRules(t, testRuleSet)

	v, reason := InferReply("LOAD_OFFER", r)
	assert.Equal(t, VerdictTrue, v)
	assert.Equal(t, "Subject category 'LOAD_OFFER' indicates action is needed.", reason)

	v, reason = InferReply("STATUS_UPDATE", r)
	assert.Equal(t, VerdictFalse, v)
	assert.Equal(t, "Subject category 'STATUS_UPDATE' is informational.", reason)

	v, reason = InferReply(rules.Other, r)
	assert.Equal(t, VerdictUnknown, v)
	assert.Equal(t, "No strong subject signal.", reason)
}

func TestInferReplyTrueSetWinsOverlap(t *testing.T) {
	r := loadRules(t, testRuleSet)
	require.NotEmpty(t, r.Warnings())

	v, _ := InferReply("BOTH", r)
	assert.Equal(t, VerdictTrue, v)
}

func TestClassify(t *testing.T) {
	c := NewClassifier(loadRules(t, testRuleSet))

	email := &Email{
		From:    "Acme Freight <tenders@acmefreight.com>",
		Subject: "Load offer #48213",
		Body: "<html><body><p>Please confirm the load tender below.</p>" +
			strings.Repeat("<p>details</p>", 20) +
			"<p>Acme Freight Inc</p></body></html>",
	}

	got := c.Classify(email)
	assert.True(t, got.IsVendorMatch)
	assert.Equal(t, 6.0, got.Score)
	assert.Equal(t, []string{EvidenceFromDomain, EvidenceSenderName, EvidencePhrase}, got.Evidence)
	assert.Equal(t, "LOAD_OFFER", got.SubjectCategory)
	assert.Equal(t, []string{"48213"}, got.Identifiers)
	assert.Equal(t, StampFooter, got.StampPosition)
	assert.Equal(t, VerdictTrue, got.NeedsReply)
	assert.Contains(t, got.Reason, "LOAD_OFFER")
}

func TestClassifyDegradesOnEmptyInput(t *testing.T) {
	c := NewClassifier(loadRules(t, testRuleSet))

	for _, email := range []*Email{nil, {}, EmailFromMap(map[string]any{"from": 42, "subject": nil, "body": []int{1}})} {
		got := c.Classify(email)
		assert.False(t, got.IsVendorMatch)
		assert.Equal(t, rules.Other, got.SubjectCategory)
		assert.Equal(t, []string{}, got.Identifiers)
		assert.Equal(t, StampNone, got.StampPosition)
		assert.Equal(t, VerdictUnknown, got.NeedsReply)
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(loadRules(t, testRuleSet))
	email := &Email{
		From:    "ops@acmefreight.com",
		Subject: "status #1 #2",
		Body:    `<a href="https://carrier360.com">x</a> powered by Carrier 360`,
	}

	first := c.Classify(email)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, c.Classify(email))
	}
}

func TestEmailFromMap(t *testing.T) {
	email := EmailFromMap(map[string]any{
		"id":            "m1",
		"from":          "a@b.com",
		"subject":       "hi",
		"original_body": "<p>html</p>",
		"body":          "plain",
	})
	assert.Equal(t, &Email{ID: "m1", From: "a@b.com", Subject: "hi", Body: "<p>html</p>"}, email)

	assert.Equal(t, "plain", EmailFromMap(map[string]any{"body": "plain"}).Body)
	assert.Equal(t, &Email{}, EmailFromMap(nil))
}

func TestVerdictJSON(t *testing.T) {
	out, err := json.Marshal(map[string]Verdict{"a": VerdictTrue, "b": VerdictFalse, "c": VerdictUnknown})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a": true, "b": false, "c": null}`, string(out))

	var v Verdict
	require.NoError(t, json.Unmarshal([]byte("false"), &v))
	assert.Equal(t, VerdictFalse, v)
	require.NoError(t, json.Unmarshal([]byte("null"), &v))
	assert.Equal(t, VerdictUnknown, v)
}
