// Package fallback supplies deterministic judgments from static severity labels when the
// oracle fails. Everything here is pure: no I/O, no randomness, no clock.
package fallback

import (
	"context"
	"fmt"

	"issuerank/internal/domain"
	"issuerank/internal/oracle"
)

// NeutralScore is assigned when an item cannot be scored by the oracle.
const NeutralScore = 50

// Reasoning prefixes. Audits rely on these to tell fallback judgments from model ones.
const (
	ComparisonPrefix = "Fallback comparison based on severity levels"
	ScorePrefix      = "Fallback score based on severity level"
)

// Policy is the severity-ordered fallback. The zero value is ready to use.
type Policy struct{}

// Compare declares a the winner when its severity is greater than or equal to b's.
func (Policy) Compare(a, b domain.Item) oracle.Comparison {
	return oracle.Comparison{
		FirstWins: a.Severity() >= b.Severity(),
		Reasoning: fmt.Sprintf("%s: %s vs %s", ComparisonPrefix, label(a), label(b)),
	}
}

func (Policy) Score(a domain.Item) oracle.Score {
	return oracle.Score{
		Value:     NeutralScore,
		Reasoning: fmt.Sprintf("%s %s: neutral value %d", ScorePrefix, label(a), NeutralScore),
	}
}

func label(it domain.Item) string {
	if l := it.SeverityLabel(); l != "" {
		return l
	}
	return domain.SeverityUnknown.String()
}

// Oracle is the fallback-only Oracle variant. It never fails, which makes it the
// deterministic stand-in for offline runs and tests.
type Oracle struct {
	Policy Policy
}

func (o Oracle) Compare(_ context.Context, a, b domain.Item) (oracle.Comparison, error) {
	return o.Policy.Compare(a, b), nil
}

func (o Oracle) Score(_ context.Context, a domain.Item) (oracle.Score, error) {
	return o.Policy.Score(a), nil
}

// FallbackOnly marks every answer from this oracle as a fallback judgment.
func (Oracle) FallbackOnly() bool { return true }

var _ oracle.Oracle = Oracle{}
