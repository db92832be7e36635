package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int64 `json:"prompt_tokens"`
		CompletionTokens int64 `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// OpenAICompleter calls the chat completions endpoint.
type OpenAICompleter struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewOpenAICompleter(cfg ProviderConfig) *OpenAICompleter {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return &OpenAICompleter{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      cfg.model(),
		maxTokens:  cfg.maxTokens(),
		httpClient: cfg.httpClient(),
	}
}

func (c *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	bodyBytes, err := json.Marshal(openAIRequest{
		Model:     c.model,
		Messages:  []openAIMessage{{Role: "user", Content: prompt}},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", Usage{}, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", Usage{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", Usage{}, fmt.Errorf("OpenAI API error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", Usage{}, fmt.Errorf("reading response: %w", err)
	}

	var parsed openAIResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", Usage{}, fmt.Errorf("parsing OpenAI response (status %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != nil {
		return "", Usage{}, fmt.Errorf("OpenAI API error: %s", parsed.Error.Message)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", Usage{}, fmt.Errorf("OpenAI API status %d", resp.StatusCode)
	}
	if len(parsed.Choices) == 0 {
		return "", Usage{}, fmt.Errorf("no choices in OpenAI response")
	}

	usage := Usage{}
	if parsed.Usage != nil {
		usage.InputTokens = parsed.Usage.PromptTokens
		usage.OutputTokens = parsed.Usage.CompletionTokens
	}
	return parsed.Choices[0].Message.Content, usage, nil
}
