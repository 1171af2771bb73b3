package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/mail-triage/internal/adapters/mailparse"
)

func TestCliFilterSummary(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newTestService(t), zaptest.NewLogger(t), &out, true, false)

	msg, err := mailparse.Parse(strings.NewReader(tenderMessage))
	require.NoError(t, err)

	outcome, err := f.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)
	require.NotNil(t, outcome.Classification)

	text := out.String()
	assert.Contains(t, text, "Subject: Load tender load #123456")
	assert.Contains(t, text, "Vendor match: true")
	assert.Contains(t, text, "Subject category: LOAD_OFFER")
	assert.Contains(t, text, "Needs reply: true")
	assert.Contains(t, text, "Latest reply:\nPlease confirm the load tender.")
}

func TestCliFilterJSON(t *testing.T) {
	var out bytes.Buffer
	f := NewCliFilter(newTestService(t), zaptest.NewLogger(t), &out, false, true)

	msg, err := mailparse.Parse(strings.NewReader(tenderMessage))
	require.NoError(t, err)

	_, err = f.ProcessMessage(context.Background(), msg)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, "t1@acmefreight.com", report["id"])

	classification, ok := report["classification"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, true, classification["needs_reply"])
	assert.Equal(t, []any{"123456"}, classification["identifiers"])
}
