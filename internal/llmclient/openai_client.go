// internal/llmclient/openai_client.go
package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"go.uber.org/zap"

	"github.com/xkilldash9x/axpilot/api/schemas"
	"github.com/xkilldash9x/axpilot/internal/config"
)

// OpenAIClient implements schemas.LLMClient for OpenAI and compatible chat
// completion endpoints (Groq, OpenRouter, local servers) selected by Endpoint.
type OpenAIClient struct {
	client openai.Client
	model  string
	cfg    config.LLMConfig
	logger *zap.Logger
}

// NewOpenAIClient initializes the client. SDK retries are disabled; the
// resilient wrapper owns the retry policy.
func NewOpenAIClient(cfg config.LLMConfig, logger *zap.Logger) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API Key is required")
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithBaseURL(cfg.Endpoint))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		cfg:    cfg,
		logger: logger.Named("llm_client.openai"),
	}, nil
}

// Generate runs one chat completion and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	params := c.buildParams(req)

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", permanent(fmt.Errorf("openai API returned no choices"))
	}
	choice := resp.Choices[0]
	if choice.Message.Content == "" {
		if choice.Message.Refusal != "" {
			return "", permanent(fmt.Errorf("openai API refused: %s", choice.Message.Refusal))
		}
		return "", fmt.Errorf("openai API returned empty content (Reason: %s)", choice.FinishReason)
	}

	c.logger.Info("LLM generation complete (OpenAI)",
		zap.Duration("duration", time.Since(start)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens),
		zap.Int64("total_tokens", resp.Usage.TotalTokens),
	)
	return choice.Message.Content, nil
}

func (c *OpenAIClient) buildParams(req schemas.GenerationRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.SystemMessage(req.SystemPrompt))
	}
	messages = append(messages, openai.UserMessage(req.UserPrompt))

	params := openai.ChatCompletionNewParams{
		Model:       shared.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Options.Temperature),
	}
	if n := maxTokens(req, c.cfg); n > 0 {
		params.MaxTokens = openai.Int(int64(n))
	}
	// ForceJSONFormat is not mapped: json_object mode requires a top-level
	// object and the planner contract is an array.
	return params
}

// Close is a no-op.
func (c *OpenAIClient) Close() error { return nil }
