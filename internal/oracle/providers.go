package oracle

import (
	"context"
	"fmt"
	"net/http"

	"issuerank/internal/httpx"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	// ProviderNone ranks offline with the fallback policy only.
	ProviderNone = "none"
)

const (
	DefaultAnthropicModel = "claude-sonnet-4-5-20250929"
	DefaultBedrockModel   = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultGeminiModel    = "gemini-2.5-flash"
	DefaultMaxTokens      = 1000
)

func DefaultModel(provider string) string {
	switch provider {
	case ProviderBedrock:
		return DefaultBedrockModel
	case ProviderOpenAI:
		return DefaultOpenAIModel
	case ProviderGemini:
		return DefaultGeminiModel
	case ProviderAnthropic:
		return DefaultAnthropicModel
	default:
		return ""
	}
}

type ProviderConfig struct {
	Provider   string
	Model      string
	APIKey     string
	BaseURL    string
	MaxTokens  int
	MaxRetries int
	HTTPClient *http.Client
}

func (c ProviderConfig) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel(c.Provider)
}

func (c ProviderConfig) maxTokens() int {
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return DefaultMaxTokens
}

func (c ProviderConfig) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return httpx.NewClient(0)
}

// NewCompleter builds the transport for the configured provider.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	switch cfg.Provider {
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg), nil
	case ProviderBedrock:
		c, err := NewBedrockCompleter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg), nil
	case ProviderGemini:
		c, err := NewGeminiCompleter(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
