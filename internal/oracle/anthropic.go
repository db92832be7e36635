package oracle

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

// AnthropicCompleter talks to the Messages API directly or through AWS Bedrock.
type AnthropicCompleter struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicCompleter(cfg ProviderConfig) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(cfg.httpClient()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     cfg.model(),
		maxTokens: int64(cfg.maxTokens()),
	}
}

// NewBedrockCompleter resolves AWS credentials and region from the default chain
// (environment, shared config, instance role). A broken profile is returned as an error.
func NewBedrockCompleter(ctx context.Context, cfg ProviderConfig) (*AnthropicCompleter, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(cfg.httpClient()),
		bedrock.WithConfig(awsCfg),
	}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	return &AnthropicCompleter{
		client:    anthropic.NewClient(opts...),
		model:     cfg.model(),
		maxTokens: int64(cfg.maxTokens()),
	}, nil
}

func (c *AnthropicCompleter) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("anthropic API error: %w", err)
	}
	usage := Usage{
		InputTokens:  message.Usage.InputTokens,
		OutputTokens: message.Usage.OutputTokens,
	}
	for _, block := range message.Content {
		if block.Type == "text" {
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in anthropic response")
}
