package fallback

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuerank/internal/domain"
)

func TestCompareCitesBothSeverities(t *testing.T) {
	items := domain.MustItems(`{"severityLevel":"CRITICAL"}`, `{"severityLevel":"LOW"}`)

	got := Policy{}.Compare(items[0], items[1])
	assert.True(t, got.FirstWins)
	assert.Contains(t, got.Reasoning, "CRITICAL")
	assert.Contains(t, got.Reasoning, "LOW")
	assert.Equal(t, "Fallback comparison based on severity levels: CRITICAL vs LOW", got.Reasoning)

	reversed := Policy{}.Compare(items[1], items[0])
	assert.False(t, reversed.FirstWins)
}

func TestCompareTiesFavorFirstArgument(t *testing.T) {
	items := domain.MustItems(`{"id":"A","severityLevel":"HIGH"}`, `{"id":"B","severityLevel":"HIGH"}`)
	assert.True(t, Policy{}.Compare(items[0], items[1]).FirstWins)
	assert.True(t, Policy{}.Compare(items[1], items[0]).FirstWins)
}

func TestCompareUnknownSeverityRanksLowest(t *testing.T) {
	items := domain.MustItems(`{"severityLevel":"informational"}`, `{"severityLevel":"LOW"}`, `{"id":"none"}`)

	assert.False(t, Policy{}.Compare(items[0], items[1]).FirstWins)
	got := Policy{}.Compare(items[2], items[0])
	assert.True(t, got.FirstWins)
	assert.Equal(t, "Fallback comparison based on severity levels: UNKNOWN vs informational", got.Reasoning)
}

func TestScoreIsNeutral(t *testing.T) {
	got := Policy{}.Score(domain.MustItems(`{"severityLevel":"MEDIUM"}`)[0])
	assert.Equal(t, NeutralScore, got.Value)
	assert.Equal(t, "Fallback score based on severity level MEDIUM: neutral value 50", got.Reasoning)
}

func TestOracleNeverFails(t *testing.T) {
	items := domain.MustItems(`{"severityLevel":"LOW"}`, `{"severityLevel":"HIGH"}`)

	cmp, err := Oracle{}.Compare(context.Background(), items[0], items[1])
	require.NoError(t, err)
	assert.False(t, cmp.FirstWins)

	score, err := Oracle{}.Score(context.Background(), items[0])
	require.NoError(t, err)
	assert.Equal(t, NeutralScore, score.Value)
}
