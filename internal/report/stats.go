package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/montanaflynn/stats"

	"issuerank/internal/domain"
	"issuerank/internal/oracle"
	"issuerank/internal/ranking"
)

// Stats describes a finished run.
type Stats struct {
	Strategy    string
	Count       int
	OracleCalls int
	Fallbacks   int
	Usage       oracle.Usage
	Severities  map[string]int

	// Distribution of Elo ratings or scores; zero for the bubble strategy.
	HasValues bool
	Mean      float64
	Median    float64
	StdDev    float64
	Min       float64
	Max       float64
}

// Summarize computes Stats for a ranking result. Usage comes from the oracle when it tracks it.
func Summarize(res ranking.Result, usage oracle.Usage) Stats {
	s := Stats{
		Strategy:    res.Strategy,
		Count:       len(res.Items),
		OracleCalls: res.OracleCalls(),
		Fallbacks:   res.Fallbacks(),
		Usage:       usage,
		Severities:  map[string]int{},
	}
	var values stats.Float64Data
	for _, it := range res.Items {
		s.Severities[severity(it)]++
		switch res.Strategy {
		case ranking.NameElo:
			if r, ok := it.Rating(); ok {
				values = append(values, r)
			}
		case ranking.NameScore:
			if v, ok := it.Score(); ok {
				values = append(values, float64(v))
			}
		}
	}
	if len(values) == 0 {
		return s
	}

	s.HasValues = true
	s.Mean, _ = values.Mean()
	s.Median, _ = values.Median()
	s.StdDev, _ = values.StandardDeviation()
	s.Min, _ = values.Min()
	s.Max, _ = values.Max()
	return s
}

// FallbackRate is the share of judgments that came from the fallback policy.
func (s Stats) FallbackRate() float64 {
	if s.OracleCalls == 0 {
		return 0
	}
	return float64(s.Fallbacks) / float64(s.OracleCalls)
}

// SeverityLine lists severity counts from most to least urgent, e.g. "CRITICAL 2, LOW 1".
func (s Stats) SeverityLine() string {
	labels := make([]string, 0, len(s.Severities))
	for l := range s.Severities {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool {
		si, sj := domain.ParseSeverity(labels[i]), domain.ParseSeverity(labels[j])
		if si != sj {
			return si > sj
		}
		return labels[i] < labels[j]
	})
	parts := make([]string, len(labels))
	for i, l := range labels {
		parts[i] = fmt.Sprintf("%s %d", l, s.Severities[l])
	}
	return strings.Join(parts, ", ")
}

func (s Stats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Issues: %d | Oracle calls: %d | Fallbacks: %d (%.0f%%)", s.Count, s.OracleCalls, s.Fallbacks, 100*s.FallbackRate())
	if tokens := s.Usage.TotalTokens(); tokens > 0 {
		fmt.Fprintf(&b, " | Tokens: %d in / %d out", s.Usage.InputTokens, s.Usage.OutputTokens)
	}
	if s.HasValues {
		fmt.Fprintf(&b, "\nMean %.1f | Median %.1f | StdDev %.1f | Range %.0f-%.0f", s.Mean, s.Median, s.StdDev, s.Min, s.Max)
	}
	if len(s.Severities) > 0 {
		b.WriteString("\nSeverity: " + s.SeverityLine())
	}
	return b.String()
}
