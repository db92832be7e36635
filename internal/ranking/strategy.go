package ranking

import (
	"fmt"
	"math"
	"strings"

	"issuerank/internal/errs"
)

// Strategy names as accepted on the command line.
const (
	NameBubble = "bubble"
	NameElo    = "elo"
	NameScore  = "score"
)

// DefaultSeed drives pair sampling when no seed is configured.
const DefaultSeed int64 = 42

// Strategy selects how the Ranker turns oracle judgments into an order. It is one of
// Exhaustive, Sampled or Direct.
type Strategy interface {
	Name() string
}

// Exhaustive runs a full adjacent-swap pass, comparing every neighbouring pair n(n-1)/2 times.
type Exhaustive struct{}

func (Exhaustive) Name() string { return NameBubble }

// Sampled rates items Elo-style from a budgeted sample of all distinct pairs.
type Sampled struct {
	// Budget is the fraction of all pairs to compare. Values at or above 1 compare every pair.
	Budget float64
	Seed   int64
}

func (Sampled) Name() string { return NameElo }

// Direct asks the oracle for an absolute score per item.
type Direct struct{}

func (Direct) Name() string { return NameScore }

// ParseStrategy maps a strategy name to its value. budget and seed only apply to elo.
func ParseStrategy(name string, budget float64, seed int64) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameBubble:
		return Exhaustive{}, nil
	case NameElo:
		if budget < 0 || math.IsNaN(budget) {
			return nil, errs.Configuration(fmt.Sprintf("max comparisons must be a number >= 0, got %v", budget), "use a fraction such as 0.3, or 1.0 for every pair", nil)
		}
		return Sampled{Budget: budget, Seed: seed}, nil
	case NameScore:
		return Direct{}, nil
	}
	return nil, errs.Configuration(fmt.Sprintf("unknown strategy %q", name), "choose one of bubble, elo, score", nil)
}
