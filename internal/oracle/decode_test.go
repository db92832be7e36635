package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"issuerank/internal/errs"
)

func TestSanitizeStripsControlCharacters(t *testing.T) {
	raw := "\x00{\"higherPriorityIssue\": 1,\x07 \"reasoning\": \"line one\nline\ttwo\u0085\u200b\"}\x7f"
	assert.Equal(t, `{"higherPriorityIssue": 1, "reasoning": "line one line two"}`, Sanitize(raw))
}

func TestSanitizeTrimsCodeFences(t *testing.T) {
	raw := "```json\n{\"score\": 12, \"reasoning\": \"ok\"}\n```"
	assert.Equal(t, `{"score": 12, "reasoning": "ok"}`, Sanitize(raw))
}

func TestSanitizeKeepsUnicodeText(t *testing.T) {
	assert.Equal(t, `{"reasoning": "exposición crítica"}`, Sanitize(`{"reasoning": "exposición crítica"}`))
}

func TestDecodeComparison(t *testing.T) {
	tests := []struct {
		name      string
		reply     string
		firstWins bool
	}{
		{name: "first", reply: `{"higherPriorityIssue": 1, "reasoning": "rce"}`, firstWins: true},
		{name: "second", reply: `{"higherPriorityIssue": 2, "reasoning": "rce"}`, firstWins: false},
		{name: "snake case alias", reply: `{"higher_priority_issue": 1, "reasoning": "rce"}`, firstWins: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeComparison(tt.reply)
			require.NoError(t, err)
			assert.Equal(t, tt.firstWins, got.FirstWins)
			assert.Equal(t, "rce", got.Reasoning)
		})
	}
}

func TestDecodeComparisonRejectsSchemaViolations(t *testing.T) {
	replies := map[string]string{
		"empty":             ``,
		"not json":          `issue 1 is worse`,
		"array":             `[1]`,
		"missing choice":    `{"reasoning": "x"}`,
		"choice out of set": `{"higherPriorityIssue": 3, "reasoning": "x"}`,
		"choice as string":  `{"higherPriorityIssue": "1", "reasoning": "x"}`,
		"missing reasoning": `{"higherPriorityIssue": 1}`,
		"reasoning number":  `{"higherPriorityIssue": 1, "reasoning": 5}`,
	}
	for name, reply := range replies {
		t.Run(name, func(t *testing.T) {
			_, err := decodeComparison(reply)
			require.Error(t, err)
			assert.Equal(t, errs.CodeOracleValidation, errs.CodeOf(err))
		})
	}
}

func TestDecodeScore(t *testing.T) {
	got, err := decodeScore(`{"score": 87, "reasoning": "public exploit"}`)
	require.NoError(t, err)
	assert.Equal(t, Score{Value: 87, Reasoning: "public exploit"}, got)

	for _, reply := range []string{
		`{"score": 0, "reasoning": "x"}`,
		`{"score": 101, "reasoning": "x"}`,
		`{"score": 50.5, "reasoning": "x"}`,
		`{"score": "50", "reasoning": "x"}`,
		`{"reasoning": "x"}`,
		`{"score": 50}`,
	} {
		_, err := decodeScore(reply)
		require.Error(t, err, reply)
		assert.True(t, errs.Is(err, errs.CodeOracleValidation), reply)
	}
}
