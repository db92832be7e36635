package oracle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"issuerank/internal/domain"
	"issuerank/internal/errs"
)

// LLMOracle is the reasoning-service-backed Oracle. It renders the prompt, calls the
// Completer, sanitizes and validates the reply. Not safe for concurrent use.
type LLMOracle struct {
	completer Completer
	template  Template
	logger    *zap.Logger
	usage     Usage
	calls     int
}

func NewLLMOracle(completer Completer, template Template, logger *zap.Logger) *LLMOracle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMOracle{completer: completer, template: template, logger: logger}
}

func (o *LLMOracle) Compare(ctx context.Context, a, b domain.Item) (Comparison, error) {
	prompt, err := o.template.RenderComparison(a, b)
	if err != nil {
		return Comparison{}, errs.Transport(fmt.Sprintf("render prompt for %s vs %s", a.ID(), b.ID()), err)
	}
	text, err := o.complete(ctx, prompt)
	if err != nil {
		return Comparison{}, err
	}
	return decodeComparison(text)
}

func (o *LLMOracle) Score(ctx context.Context, a domain.Item) (Score, error) {
	prompt, err := o.template.RenderScore(a)
	if err != nil {
		return Score{}, errs.Transport(fmt.Sprintf("render prompt for %s", a.ID()), err)
	}
	text, err := o.complete(ctx, prompt)
	if err != nil {
		return Score{}, err
	}
	return decodeScore(text)
}

func (o *LLMOracle) complete(ctx context.Context, prompt string) (string, error) {
	o.calls++
	text, usage, err := o.completer.Complete(ctx, prompt)
	o.usage.Add(usage)
	if err != nil {
		return "", errs.Transport("oracle request failed", err)
	}
	sanitized := Sanitize(text)
	o.logger.Debug("oracle reply",
		zap.Int("call", o.calls),
		zap.Int("prompt_chars", len(prompt)),
		zap.Int("reply_chars", len(text)),
		zap.Int("sanitized_chars", len(sanitized)),
		zap.Int64("tokens_in", usage.InputTokens),
		zap.Int64("tokens_out", usage.OutputTokens),
	)
	return sanitized, nil
}

func (o *LLMOracle) Usage() Usage { return o.usage }

// Calls counts requests sent to the completer.
func (o *LLMOracle) Calls() int { return o.calls }
