package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/mikey/mail-triage/internal/adapters/advice"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// GeminiAdvisor is an implementation of the ReplyAdvisor interface using Google Gemini
type GeminiAdvisor struct {
	client        *genai.Client
	model         *genai.GenerativeModel
	modelName     string
	maxBodySize   int
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewGeminiAdvisor creates a new Gemini advisor
func NewGeminiAdvisor(
	apiKey string,
	modelName string,
	maxTokens int,
	temperature float32,
	topP float32,
	maxBodySize int,
	logger *zap.Logger,
	textProcessor *utils.TextProcessor,
) (*GeminiAdvisor, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(int32(maxTokens))
	model.SystemInstruction = genai.NewUserContent(genai.Text(advice.SystemPrompt))

	return &GeminiAdvisor{
		client:        client,
		model:         model,
		modelName:     modelName,
		maxBodySize:   maxBodySize,
		logger:        logger,
		textProcessor: textProcessor,
	}, nil
}

// Close closes the Gemini client
func (c *GeminiAdvisor) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// AdviseReply asks the model whether the latest reply needs a response
func (c *GeminiAdvisor) AdviseReply(ctx context.Context, email *core.Email, cleanReply string) (core.Verdict, error) {
	body := c.textProcessor.ProcessText(cleanReply, c.maxBodySize)

	resp, err := c.model.GenerateContent(ctx, genai.Text(advice.Prompt(email, body)))
	if err != nil {
		return core.VerdictUnknown, fmt.Errorf("failed to generate content with Gemini: %w", err)
	}

	answer, err := responseText(resp)
	if err != nil {
		return core.VerdictUnknown, err
	}

	verdict := advice.ParseAnswer(answer)
	c.logger.Debug("Gemini advice received",
		zap.String("model", c.modelName),
		zap.String("answer", answer),
		zap.Stringer("verdict", verdict))
	return verdict, nil
}

// responseText joins the text parts of the first candidate
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("empty response from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errors.New("no text in Gemini response")
	}
	return sb.String(), nil
}
