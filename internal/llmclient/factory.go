// internal/llmclient/factory.go
package llmclient

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// NewClient creates the configured provider client wrapped with retries and
// rate limiting.
func NewClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger) (schemas.LLMClient, error) {
	var (
		inner schemas.LLMClient
		err   error
	)
	switch cfg.Provider {
	case config.ProviderGemini:
		inner, err = NewGeminiClient(ctx, cfg, logger)
	case config.ProviderOpenAI:
		inner, err = NewOpenAIClient(cfg, logger)
	case config.ProviderAnthropic:
		inner, err = NewAnthropicClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown or unsupported LLM provider configured: '%s'. Supported: [%s, %s, %s]",
			cfg.Provider, config.ProviderGemini, config.ProviderOpenAI, config.ProviderAnthropic)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("LLM client created.", zap.String("provider", string(cfg.Provider)), zap.String("model", cfg.Model))
	return NewResilientClient(inner, cfg, logger), nil
}
