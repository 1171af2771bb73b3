package openai

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/mail-triage/internal/adapters/advice"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// chatCompleter is the part of the OpenAI client used by the advisor
type chatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAdvisor is an implementation of the ReplyAdvisor interface using OpenAI
type OpenAIAdvisor struct {
	client        chatCompleter
	modelName     string
	maxTokens     int
	temperature   float32
	topP          float32
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewOpenAIAdvisor creates a new OpenAI advisor
func NewOpenAIAdvisor(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIAdvisor {
	return newAdvisor(openai.NewClient(apiKey), modelName, maxTokens, temperature, topP, maxBodySize, logger, textProcessor)
}

func newAdvisor(
	client chatCompleter,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) *OpenAIAdvisor {
	return &OpenAIAdvisor{
		client:        client,
		modelName:     modelName,
		maxTokens:     maxTokens,
		temperature:   temperature,
		topP:          topP,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// AdviseReply asks the model whether the latest reply needs a response
func (c *OpenAIAdvisor) AdviseReply(ctx context.Context, email *core.Email, cleanReply string) (core.Verdict, error) {
	body := c.textProcessor.ProcessText(cleanReply, c.maxBodySize)

	req := openai.ChatCompletionRequest{
		Model: c.modelName,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: advice.SystemPrompt,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: advice.Prompt(email, body),
			},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
		TopP:        c.topP,
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to create chat completion with OpenAI: %w", err)
	}
	if len(resp.Choices) == 0 {
		return core.VerdictUnknown, errors.New("empty response from OpenAI")
	}

	answer := resp.Choices[0].Message.Content
	verdict := advice.ParseAnswer(answer)
	c.logger.Debug("OpenAI advice received",
		zap.String("model", c.modelName),
		zap.String("answer", answer),
		zap.Stringer("verdict", verdict))
	return verdict, nil
}
