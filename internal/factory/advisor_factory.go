package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/mikey/mail-triage/internal/adapters/bedrock"
	"github.com/mikey/mail-triage/internal/adapters/gemini"
	"github.com/mikey/mail-triage/internal/adapters/openai"
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/core"
	"github.com/mikey/mail-triage/internal/utils"
	"go.uber.org/zap"
)

// AdvisorFactory creates reply advisors
type AdvisorFactory struct {
	cfg           *config.Config
	logger        *zap.Logger
	textProcessor *utils.TextProcessor
}

// NewAdvisorFactory creates a new advisor factory
func NewAdvisorFactory(cfg *config.Config, logger *zap.Logger, textProcessor *utils.TextProcessor) *AdvisorFactory {
	return &AdvisorFactory{
		cfg:           cfg,
		logger:        logger,
		textProcessor: textProcessor,
	}
}

// CreateAdvisor creates the configured reply advisor. It returns nil when no
// provider is configured.
func (f *AdvisorFactory) CreateAdvisor(ctx context.Context) (core.ReplyAdvisor, error) {
	llmConfig := f.cfg.GetLLM()

	switch llmConfig.Provider {
	case "", "none":
		return nil, nil
	case "bedrock":
		advisor, err := bedrock.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor(ctx)
		if err != nil {
			return nil, err
		}
		return advisor, nil
	case "gemini":
		if f.cfg.GetGemini().APIKey == "" {
			return nil, errors.New("gemini API key is required")
		}
		advisor, err := gemini.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
		if err != nil {
			return nil, err
		}
		return advisor, nil
	case "openai":
		if f.cfg.GetOpenAI().APIKey == "" {
			return nil, errors.New("openai API key is required")
		}
		return openai.NewFactory(f.cfg, f.logger, f.textProcessor).CreateAdvisor()
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", llmConfig.Provider)
	}
}
