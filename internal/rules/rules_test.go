package rules

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
vendor_detection:
  from_domains: [example.com]
  sender_names_contains: []
  body_phrases: []
  url_host_contains: []
  evidence_weighting:
    from_domain_match: 3
    host_contains_match: 2
    phrase_match: 1
    sender_name_match: 2
  threshold: 3
subject_patterns:
  ZULU: 'z'
  ID_PATTERN: '#(\d+)'
  ALPHA: 'a'
  MIKE: 'm'
reply_heuristics:
  requires_reply_true_if: [ZULU]
  requires_reply_false_if: [ALPHA]
company_stamp:
  footer_indicators: [Example Inc]
`

func TestLoadFile(t *testing.T) {
	r, err := LoadFile("testdata/rules.yaml")
	require.NoError(t, err)

	assert.Equal(t, []string{"acmefreight.com", "acme-logistics.net"}, r.FromDomains)
	assert.Equal(t, Weights{FromDomain: 3, Host: 2, Phrase: 1, SenderName: 2}, r.Weights)
	assert.Equal(t, 3.0, r.Threshold)
	require.NotNil(t, r.IdentifierPattern)
	assert.Len(t, r.SubjectPatterns, 7)
	assert.Equal(t, "RATE_CONFIRMATION", r.SubjectPatterns[0].Category)
	assert.True(t, r.RequiresReply("LOAD_OFFER"))
	assert.True(t, r.Informational("STATUS_UPDATE"))
	assert.Empty(t, r.Warnings())
}

func TestLoadFileMissing(t *testing.T) {
	_, err := LoadFile("testdata/does-not-exist.yaml")
	require.Error(t, err)
}

func TestLoadPreservesDocumentOrder(t *testing.T) {
	r, err := Load(strings.NewReader(minimal))
	require.NoError(t, err)

	var got []string
	for _, p := range r.SubjectPatterns {
		got = append(got, p.Category)
	}
	assert.Equal(t, []string{"ZULU", "ALPHA", "MIKE"}, got)
	assert.Equal(t, `#(\d+)`, r.IdentifierPattern.String())
}

func TestLoadMissingFields(t *testing.T) {
	tests := []struct {
		name   string
		remove string
		key    string
	}{
		{name: "from domains", remove: "  from_domains: [example.com]\n", key: "from_domains"},
		{name: "weight", remove: "    phrase_match: 1\n", key: "phrase_match"},
		{name: "threshold", remove: "  threshold: 3\n", key: "threshold"},
		{name: "identifier pattern", remove: "  ID_PATTERN: '#(\\d+)'\n", key: IdentifierKey},
		{name: "reply false set", remove: "  requires_reply_false_if: [ALPHA]\n", key: "requires_reply_false_if"},
		{name: "footer indicators", remove: "  footer_indicators: [Example Inc]\n", key: "footer_indicators"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := strings.Replace(minimal, tt.remove, "", 1)
			require.NotEqual(t, minimal, doc, "fixture line not found")

			_, err := Load(strings.NewReader(doc))
			require.ErrorIs(t, err, ErrMissingField)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadMissingSubjectPatterns(t *testing.T) {
	doc := strings.Replace(minimal, "subject_patterns:\n  ZULU: 'z'\n  ID_PATTERN: '#(\\d+)'\n  ALPHA: 'a'\n  MIKE: 'm'\n", "", 1)
	require.NotEqual(t, minimal, doc)

	_, err := Load(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrMissingField)
}

func TestLoadInvalidPattern(t *testing.T) {
	doc := strings.Replace(minimal, "MIKE: 'm'", "MIKE: '(unclosed'", 1)
	_, err := Load(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidPattern)
}

func TestLoadNegativeWeight(t *testing.T) {
	doc := strings.Replace(minimal, "phrase_match: 1", "phrase_match: -1", 1)
	_, err := Load(strings.NewReader(doc))
	require.ErrorIs(t, err, ErrInvalidWeight)
}

func TestOverlappingReplyCategoriesWarn(t *testing.T) {
	doc := strings.Replace(minimal, "requires_reply_false_if: [ALPHA]", "requires_reply_false_if: [ALPHA, ZULU]", 1)
	r, err := Load(strings.NewReader(doc))
	require.NoError(t, err)

	require.Len(t, r.Warnings(), 1)
	assert.Contains(t, r.Warnings()[0], `"ZULU"`)
	assert.True(t, r.RequiresReply("ZULU"))
	assert.True(t, r.Informational("ZULU"))
}
