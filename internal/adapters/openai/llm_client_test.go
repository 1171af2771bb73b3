package openai

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mikey/mail-triage/internal/adapters/advice"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
)

type fakeCompleter struct {
	answer string
	err    error
	req    openai.ChatCompletionRequest
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.req = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	if f.answer == "" {
		return openai.ChatCompletionResponse{}, nil
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{Content: f.answer}},
		},
	}, nil
}

func testAdvisor(t *testing.T, client chatCompleter, maxBodySize int) *OpenAIAdvisor {
	logger := zaptest.NewLogger(t)
	return newAdvisor(client, "gpt-test", 10, 0, 1, maxBodySize, logger, utils.NewTextProcessor(logger))
}

func TestAdviseReply(t *testing.T) {
	email := &core.Email{From: "ops@acmefreight.com", Subject: "Where is load 42?"}

	tests := []struct {
		answer string
		want   core.Verdict
	}{
		{answer: "YES", want: core.VerdictTrue},
		{answer: "No.", want: core.VerdictFalse},
		{answer: "Maybe", want: core.VerdictUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.answer, func(t *testing.T) {
			client := &fakeCompleter{answer: tc.answer}
			verdict, err := testAdvisor(t, client, 0).AdviseReply(context.Background(), email, "Please send an ETA")
			require.NoError(t, err)
			assert.Equal(t, tc.want, verdict)

			require.Len(t, client.req.Messages, 2)
			assert.Equal(t, advice.SystemPrompt, client.req.Messages[0].Content)
			assert.Contains(t, client.req.Messages[1].Content, "Subject: Where is load 42?")
			assert.Contains(t, client.req.Messages[1].Content, "Please send an ETA")
			assert.Equal(t, "gpt-test", client.req.Model)
		})
	}
}

func TestAdviseReplyTruncatesBody(t *testing.T) {
	client := &fakeCompleter{answer: "no"}
	body := strings.Repeat("a", 40)

	_, err := testAdvisor(t, client, 10).AdviseReply(context.Background(), &core.Email{}, body)
	require.NoError(t, err)

	prompt := client.req.Messages[1].Content
	assert.Contains(t, prompt, strings.Repeat("a", 10)+utils.TruncationMarker)
	assert.NotContains(t, prompt, strings.Repeat("a", 11))
}

func TestAdviseReplyErrors(t *testing.T) {
	verdict, err := testAdvisor(t, &fakeCompleter{err: errors.New("rate limited")}, 0).
		AdviseReply(context.Background(), &core.Email{}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, core.VerdictUnknown, verdict)

	verdict, err = testAdvisor(t, &fakeCompleter{}, 0).AdviseReply(context.Background(), &core.Email{}, "hi")
	require.Error(t, err)
	assert.Equal(t, core.VerdictUnknown, verdict)
}
