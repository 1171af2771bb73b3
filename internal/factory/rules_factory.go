package factory

import (
	"github.com/mikey/mail-triage/internal/config"
	"github.com/mikey/mail-triage/internal/rules"
	"go.uber.org/zap"
)

// LoadRules loads the configured rule set and logs its warnings
func LoadRules(cfg *config.Config, logger *zap.Logger) (*rules.Rules, error) {
	path := cfg.GetTriage().RulesPath
	r, err := rules.LoadFile(path)
	if err != nil {
		return nil, err
	}
	for _, warning := range r.Warnings() {
		logger.Warn("Rule set warning", zap.String("path", path), zap.String("warning", warning))
	}
	logger.Info("Loaded rule set", zap.String("path", path))
	return r, nil
}
