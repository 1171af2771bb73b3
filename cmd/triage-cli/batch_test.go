package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/rules"
)

func TestDecodeRecords(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		ids  []string
	}{
		{name: "list", doc: `[{"id":"a"},{"id":"b"},"skip"]`, ids: []string{"a", "b"}},
		{name: "emails key", doc: `{"emails":[{"id":"a"}]}`, ids: []string{"a"}},
		{name: "keyed", doc: `{"z":{"subject":"x"},"m":{"id":"own"},"bad":1}`, ids: []string{"own", "z"}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			emails, err := decodeRecords([]byte(tc.doc))
			require.NoError(t, err)

			ids := make([]string, 0, len(emails))
			for _, e := range emails {
				ids = append(ids, e.ID)
			}
			assert.Equal(t, tc.ids, ids)
		})
	}
}

func TestDecodeRecordsInvalid(t *testing.T) {
	_, err := decodeRecords([]byte(`"text"`))
	assert.Error(t, err)

	_, err = decodeRecords([]byte(`{`))
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	r, err := rules.LoadFile("../../internal/rules/testdata/rules.yaml")
	require.NoError(t, err)

	emails := []*core.Email{
		{ID: "1", From: "tenders@acmefreight.com", Subject: "Load tender load #123456"},
		{ID: "2", From: "friend@example.com", Subject: "Lunch, tomorrow?"},
		{ID: "3", From: "ops@acmefreight.com", Subject: "Delivered"},
	}

	var out bytes.Buffer
	require.NoError(t, writeCSV(&out, core.NewClassifier(r), emails, 2))

	assert.Equal(t,
		"id,from,subject,is_vendor,subject_category,needs_response_pred\n"+
			"1,tenders@acmefreight.com,Load tender load #123456,true,LOAD_OFFER,true\n"+
			"2,friend@example.com,\"Lunch, tomorrow?\",false,OTHER,\n",
		out.String())
}

func TestParseDecision(t *testing.T) {
	yes, err := parseDecision("YES")
	require.NoError(t, err)
	assert.True(t, yes)

	no, err := parseDecision("n")
	require.NoError(t, err)
	assert.False(t, no)

	_, err = parseDecision("maybe")
	assert.Error(t, err)
}
