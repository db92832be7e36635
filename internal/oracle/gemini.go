package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

type GeminiCompleter struct {
	client    *genai.Client
	model     string
	maxTokens int32
}

func NewGeminiCompleter(ctx context.Context, cfg ProviderConfig) (*GeminiCompleter, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.httpClient(),
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("create GenAI client: %w", err)
	}
	return &GeminiCompleter{
		client:    client,
		model:     cfg.model(),
		maxTokens: int32(cfg.maxTokens()),
	}, nil
}

func (c *GeminiCompleter) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		MaxOutputTokens:  c.maxTokens,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("GenAI generate failed: %w", err)
	}
	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.InputTokens = int64(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int64(resp.UsageMetadata.CandidatesTokenCount)
	}
	text := resp.Text()
	if text == "" {
		return "", usage, fmt.Errorf("no text content in GenAI response")
	}
	return text, usage, nil
}
