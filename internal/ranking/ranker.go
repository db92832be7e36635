// Package ranking orders issues by urgency from oracle judgments, substituting the fallback
// policy whenever the oracle fails.
package ranking

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"go.uber.org/zap"

	"issuerank/internal/domain"
	"issuerank/internal/errs"
	"issuerank/internal/fallback"
	"issuerank/internal/oracle"
	"issuerank/internal/progress"
)

// Elo parameters.
const (
	InitialRating = 1200.0
	KFactor       = 32.0
)

// Ranker runs one strategy over a set of items. The zero value ranks with the fallback
// policy alone.
type Ranker struct {
	Oracle   oracle.Oracle
	Fallback fallback.Policy
	Progress progress.Sink
	Logger   *zap.Logger
}

// Judgment is one entry of the run log. SecondID is empty for scoring judgments.
type Judgment struct {
	Seq       int
	FirstID   string
	SecondID  string
	FirstWins bool
	Score     int
	Reasoning string
	Fallback  bool
	Code      errs.Code
}

// Result is the ranked order together with the run log of every judgment behind it.
type Result struct {
	Strategy  string
	Items     []domain.Item
	Judgments []Judgment
}

// OracleCalls counts every judgment, oracle-sourced or not.
func (r Result) OracleCalls() int { return len(r.Judgments) }

// Fallbacks counts judgments that came from the fallback policy.
func (r Result) Fallbacks() int {
	n := 0
	for _, j := range r.Judgments {
		if j.Fallback {
			n++
		}
	}
	return n
}

// Rank orders items with the given strategy. The input slice is left untouched. When ctx is
// cancelled between oracle calls Rank stops and returns the items annotated so far, unsorted,
// together with ctx.Err().
func (r Ranker) Rank(ctx context.Context, s Strategy, items []domain.Item) (Result, error) {
	run := r.newRun(s)
	work := append([]domain.Item(nil), items...)

	var (
		out []domain.Item
		err error
	)
	switch s := s.(type) {
	case Exhaustive:
		out, err = run.exhaustive(ctx, work)
	case Sampled:
		out, err = run.sampled(ctx, work, s)
	case Direct:
		out, err = run.direct(ctx, work)
	default:
		return Result{}, errs.Configuration(fmt.Sprintf("unsupported strategy %T", s), "", nil)
	}
	return Result{Strategy: s.Name(), Items: out, Judgments: run.judgments}, err
}

type run struct {
	strategy  string
	oracle    oracle.Oracle
	policy    fallback.Policy
	sink      progress.Sink
	logger    *zap.Logger
	offline   bool
	total     int
	judgments []Judgment
}

func (r Ranker) newRun(s Strategy) *run {
	rn := &run{
		oracle: r.Oracle,
		policy: r.Fallback,
		sink:   r.Progress,
		logger: r.Logger,
	}
	if s != nil {
		rn.strategy = s.Name()
	}
	if rn.oracle == nil {
		rn.oracle = fallback.Oracle{Policy: r.Fallback}
	}
	rn.offline = offline(rn.oracle)
	if rn.sink == nil {
		rn.sink = progress.Nop{}
	}
	if rn.logger == nil {
		rn.logger = zap.NewNop()
	}
	rn.logger = rn.logger.With(zap.String("strategy", rn.strategy))
	return rn
}

// offline reports whether o only ever answers from the fallback policy.
func offline(o oracle.Oracle) bool {
	f, ok := o.(interface{ FallbackOnly() bool })
	return ok && f.FallbackOnly()
}

func (rn *run) compare(ctx context.Context, a, b domain.Item) (oracle.Comparison, bool, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Comparison{}, false, err
	}
	res, err := rn.oracle.Compare(ctx, a, b)
	j := Judgment{FirstID: a.ID(), SecondID: b.ID()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return oracle.Comparison{}, false, ctxErr
		}
		j.Fallback, j.Code = true, failureCode(err)
		res = rn.policy.Compare(a, b)
		rn.logger.Warn("oracle comparison failed, using severity fallback",
			zap.String("source", "fallback"),
			zap.String("first_id", a.ID()),
			zap.String("second_id", b.ID()),
			zap.String("code", string(j.Code)),
			zap.Error(err),
		)
	} else if rn.offline {
		j.Fallback = true
		rn.logger.Warn("no oracle configured, using severity fallback",
			zap.String("source", "fallback"),
			zap.String("first_id", a.ID()),
			zap.String("second_id", b.ID()),
		)
	} else {
		rn.logger.Debug("oracle comparison",
			zap.String("source", "oracle"),
			zap.String("first_id", a.ID()),
			zap.String("second_id", b.ID()),
			zap.Bool("first_wins", res.FirstWins),
		)
	}
	j.FirstWins, j.Reasoning = res.FirstWins, res.Reasoning
	rn.record(j)
	return res, j.Fallback, nil
}

func (rn *run) score(ctx context.Context, a domain.Item) (oracle.Score, error) {
	if err := ctx.Err(); err != nil {
		return oracle.Score{}, err
	}
	res, err := rn.oracle.Score(ctx, a)
	j := Judgment{FirstID: a.ID()}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return oracle.Score{}, ctxErr
		}
		j.Fallback, j.Code = true, failureCode(err)
		res = rn.policy.Score(a)
		rn.logger.Warn("oracle scoring failed, using neutral fallback",
			zap.String("source", "fallback"),
			zap.String("issue_id", a.ID()),
			zap.String("code", string(j.Code)),
			zap.Error(err),
		)
	} else if rn.offline {
		j.Fallback = true
		rn.logger.Warn("no oracle configured, using neutral fallback",
			zap.String("source", "fallback"),
			zap.String("issue_id", a.ID()),
		)
	} else {
		rn.logger.Debug("oracle score",
			zap.String("source", "oracle"),
			zap.String("issue_id", a.ID()),
			zap.Int("score", res.Value),
		)
	}
	j.Score, j.Reasoning = res.Value, res.Reasoning
	rn.record(j)
	return res, nil
}

func (rn *run) record(j Judgment) {
	j.Seq = len(rn.judgments) + 1
	rn.judgments = append(rn.judgments, j)
	rn.sink.Observe(progress.Event{
		Strategy:  rn.strategy,
		FirstID:   j.FirstID,
		SecondID:  j.SecondID,
		Completed: j.Seq,
		Total:     rn.total,
		Fallback:  j.Fallback,
	})
}

// failureCode keeps the taxonomy code, treating foreign errors as transport failures.
func failureCode(err error) errs.Code {
	if code := errs.CodeOf(err); code != "" {
		return code
	}
	return errs.CodeOracleTransport
}

// annotate appends the mirrored record pair for one comparison.
func annotate(a, b domain.Item, res oracle.Comparison, fromFallback bool) (domain.Item, domain.Item) {
	a = a.WithRecord(domain.ComparisonRecord{
		ComparedWithID:    b.ID(),
		Reasoning:         res.Reasoning,
		WasHigherPriority: res.FirstWins,
		Fallback:          fromFallback,
	})
	b = b.WithRecord(domain.ComparisonRecord{
		ComparedWithID:    a.ID(),
		Reasoning:         res.Reasoning,
		WasHigherPriority: !res.FirstWins,
		Fallback:          fromFallback,
	})
	return a, b
}

func (rn *run) exhaustive(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	n := len(items)
	rn.total = n * (n - 1) / 2
	for i := 0; i < n; i++ {
		for j := 0; j < n-i-1; j++ {
			res, fb, err := rn.compare(ctx, items[j], items[j+1])
			if err != nil {
				return items, err
			}
			items[j], items[j+1] = annotate(items[j], items[j+1], res, fb)
			if !res.FirstWins {
				items[j], items[j+1] = items[j+1], items[j]
			}
		}
	}
	return items, nil
}

type pair struct{ i, j int }

func allPairs(n int) []pair {
	pairs := make([]pair, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			pairs = append(pairs, pair{i, j})
		}
	}
	return pairs
}

// samplePairs draws limit pairs with a partial Fisher-Yates shuffle and returns them in draw
// order. The same seed always yields the same sample.
func samplePairs(pairs []pair, limit int, seed int64) []pair {
	pool := append([]pair(nil), pairs...)
	rng := rand.New(rand.NewSource(seed))
	for k := 0; k < limit; k++ {
		r := k + rng.Intn(len(pool)-k)
		pool[k], pool[r] = pool[r], pool[k]
	}
	return pool[:limit]
}

// ExpectedScore is the probability that a player rated ra beats one rated rb.
func ExpectedScore(ra, rb float64) float64 {
	return 1 / (1 + math.Pow(10, (rb-ra)/400))
}

func (rn *run) sampled(ctx context.Context, items []domain.Item, s Sampled) ([]domain.Item, error) {
	if s.Budget < 0 || math.IsNaN(s.Budget) {
		return items, errs.Configuration(fmt.Sprintf("max comparisons must be a number >= 0, got %v", s.Budget), "", nil)
	}
	ratings := make([]float64, len(items))
	for i := range items {
		ratings[i] = InitialRating
		items[i] = items[i].WithEmptyTrail().WithRating(InitialRating)
	}

	pairs := allPairs(len(items))
	limit := len(pairs)
	// compare in float so huge or infinite budgets cannot overflow int
	if f := math.Floor(float64(len(pairs)) * s.Budget); f < float64(len(pairs)) {
		limit = int(f)
	}
	if limit < len(pairs) {
		rn.logger.Info("sampling comparisons",
			zap.Int("pairs", len(pairs)),
			zap.Int("limit", limit),
			zap.Int64("seed", s.Seed),
		)
		pairs = samplePairs(pairs, limit, s.Seed)
	}
	rn.total = len(pairs)

	for _, p := range pairs {
		res, fb, err := rn.compare(ctx, items[p.i], items[p.j])
		if err != nil {
			return items, err
		}
		ea := ExpectedScore(ratings[p.i], ratings[p.j])
		sa := 0.0
		if res.FirstWins {
			sa = 1
		}
		ratings[p.i] += KFactor * (sa - ea)
		ratings[p.j] += KFactor * ((1 - sa) - (1 - ea))

		a, b := annotate(items[p.i], items[p.j], res, fb)
		items[p.i], items[p.j] = a.WithRating(ratings[p.i]), b.WithRating(ratings[p.j])
	}

	order := make([]int, len(items))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(x, y int) bool { return ratings[order[x]] > ratings[order[y]] })
	out := make([]domain.Item, len(items))
	for rank, idx := range order {
		out[rank] = items[idx]
	}
	return out, nil
}

func (rn *run) direct(ctx context.Context, items []domain.Item) ([]domain.Item, error) {
	rn.total = len(items)
	for i, it := range items {
		res, err := rn.score(ctx, it)
		if err != nil {
			return items, err
		}
		items[i] = it.WithScore(res.Value, res.Reasoning)
	}
	SortByScore(items)
	return items, nil
}

// SortByScore orders items by score descending in place, keeping input order among equals.
// Unscored items sort last.
func SortByScore(items []domain.Item) {
	sort.SliceStable(items, func(x, y int) bool {
		sx, okx := items[x].Score()
		sy, oky := items[y].Score()
		if okx != oky {
			return okx
		}
		return sx > sy
	})
}
