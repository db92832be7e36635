// Package oracle adapts an external reasoning service into pairwise and absolute urgency
// judgments. Every call returns either a validated result or an *errs.Error coded
// ORACLE_TRANSPORT or ORACLE_VALIDATION; it never panics past its boundary and never
// substitutes a default.
package oracle

import (
	"context"

	"issuerank/internal/domain"
)

// Oracle judges urgency. Implementations are called from a single goroutine.
type Oracle interface {
	// Compare reports whether a is more urgent than b.
	Compare(ctx context.Context, a, b domain.Item) (Comparison, error)
	// Score rates a on a 1..100 urgency scale.
	Score(ctx context.Context, a domain.Item) (Score, error)
}

// Comparison is a validated pairwise judgment.
type Comparison struct {
	FirstWins bool
	Reasoning string
}

// Score is a validated absolute judgment in [MinScore, MaxScore].
type Score struct {
	Value     int
	Reasoning string
}

const (
	MinScore = 1
	MaxScore = 100
)

// Usage is the token count reported by a provider.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

func (u Usage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// UsageReporter is implemented by oracles that track token consumption.
type UsageReporter interface {
	Usage() Usage
}

// Completer sends one rendered prompt to a model and returns its raw text reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, Usage, error)
}

type CompleterFunc func(ctx context.Context, prompt string) (string, Usage, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt string) (string, Usage, error) {
	return f(ctx, prompt)
}
