package advice

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mikey/mail-triage/internal/core"
)

func TestParseAnswer(t *testing.T) {
	tests := []struct {
		answer string
		want   core.Verdict
	}{
		{answer: "YES", want: core.VerdictTrue},
		{answer: "  yes.\n", want: core.VerdictTrue},
		{answer: "No", want: core.VerdictFalse},
		{answer: "NO - informational", want: core.VerdictFalse},
		{answer: "", want: core.VerdictUnknown},
		{answer: "maybe", want: core.VerdictUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAnswer(tt.answer))
		})
	}
}

func TestPrompt(t *testing.T) {
	p := Prompt(&core.Email{From: "a@b.com", Subject: "Load offer"}, "Can you cover?")
	assert.Contains(t, p, "From: a@b.com\nSubject: Load offer\nBody:\nCan you cover?")
	assert.Contains(t, p, "respond with only the word YES or NO")
}
