package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"issuerank/internal/errs"
	"issuerank/internal/history"
	"issuerank/internal/oracle"
)

const input = `{"issues":[
  {"id":"A","severityLevel":"LOW","type":"sca","message":"Outdated lodash"},
  {"id":"B","severityLevel":"CRITICAL","type":"sast","message":"SQL injection"},
  {"id":"C","severityLevel":"MEDIUM","type":"secret","message":"Token in test fixture"}
]}`

type harness struct {
	app    *App
	dir    string
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newHarness(t *testing.T, completer oracle.Completer) *harness {
	t.Helper()
	for _, key := range []string{"CONFIG_PATH", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY", "SLACK_BOT_TOKEN", "ISSUERANK_SCHEDULE", "ISSUERANK_HISTORY_DB_PATH"} {
		t.Setenv(key, "")
	}
	h := &harness{dir: t.TempDir(), stdout: &bytes.Buffer{}, stderr: &bytes.Buffer{}}
	h.app = &App{
		Stdout: h.stdout,
		Stderr: h.stderr,
		NewCompleter: func(context.Context, oracle.ProviderConfig) (oracle.Completer, error) {
			return completer, nil
		},
		NewLogger: func(string) (*zap.Logger, error) { return zap.NewNop(), nil },
	}
	require.NoError(t, os.WriteFile(h.path("in.json"), []byte(input), 0o644))
	return h
}

func (h *harness) path(name string) string { return filepath.Join(h.dir, name) }

func (h *harness) run(args ...string) int {
	return h.app.Run(context.Background(), args)
}

func outputIDs(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var ids []string
	for _, v := range gjson.GetBytes(data, "issues.#.id").Array() {
		ids = append(ids, v.String())
	}
	return ids
}

func TestRankOfflineBubble(t *testing.T) {
	h := newHarness(t, nil)

	code := h.run("--provider", "none", "--issues", h.path("in.json"), "--output", h.path("out.json"))
	require.Equal(t, ExitOK, code, h.stderr.String())

	assert.Equal(t, []string{"B", "C", "A"}, outputIDs(t, h.path("out.json")))
	assert.Contains(t, h.stdout.String(), "Bubble Sort Issues Summary:")
	assert.Contains(t, h.stdout.String(), "Oracle calls: 3 | Fallbacks: 3 (100%)")

	code = h.run("--provider", "none", "--output", h.path("out.json"), "--summary-only")
	require.Equal(t, ExitOK, code, h.stderr.String())
	assert.Contains(t, h.stdout.String(), "Total issues prioritized: 3")
}

func TestRankWithModelScoresAndRecordsHistory(t *testing.T) {
	scores := map[string]string{
		`"A"`: `{"score": 10, "reasoning": "minor"}`,
		`"B"`: "```json\n{\"score\": 95, \"reasoning\": \"remote\nexploit\"}\n```",
		`"C"`: `not json at all`,
	}
	completer := oracle.CompleterFunc(func(_ context.Context, prompt string) (string, oracle.Usage, error) {
		for id, reply := range scores {
			if strings.Contains(prompt, `"id": `+id) {
				return reply, oracle.Usage{InputTokens: 10, OutputTokens: 5}, nil
			}
		}
		return "", oracle.Usage{}, nil
	})
	h := newHarness(t, completer)
	require.NoError(t, os.WriteFile(h.path("score_prompt.txt"), []byte("Rate {{urgency}} of:\n{issue}\n"), 0o644))
	t.Setenv("OPENAI_API_KEY", "sk-test")

	code := h.run(
		"--provider", "openai", "--strategy", "score",
		"--issues", h.path("in.json"), "--output", h.path("out.json"),
		"--prompt-file", h.path("score_prompt.txt"),
		"--history-db", h.path("history.db"),
		"--xlsx", h.path("ranking.xlsx"),
	)
	require.Equal(t, ExitOK, code, h.stderr.String())

	data, err := os.ReadFile(h.path("out.json"))
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "A"}, outputIDs(t, h.path("out.json")))
	assert.Equal(t, int64(95), gjson.GetBytes(data, "issues.0.score").Int())
	assert.Equal(t, "remote exploit", gjson.GetBytes(data, "issues.0.reasoning").String())
	assert.Equal(t, int64(50), gjson.GetBytes(data, "issues.1.score").Int())
	assert.Contains(t, gjson.GetBytes(data, "issues.1.reasoning").String(), "Fallback score based on severity level MEDIUM")
	assert.Contains(t, h.stdout.String(), "Tokens: 30 in / 15 out")
	assert.FileExists(t, h.path("ranking.xlsx"))

	db, err := history.InitDB(h.path("history.db"))
	require.NoError(t, err)
	defer db.Close()
	runs, err := history.ListRuns(db, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "score", runs[0].Strategy)
	assert.Equal(t, 1, runs[0].Fallbacks)
	judgments, err := history.GetJudgments(db, runs[0].ID)
	require.NoError(t, err)
	require.Len(t, judgments, 3)
	assert.Equal(t, string(errs.CodeOracleValidation), judgments[2].Code)

	h.stdout.Reset()
	require.Equal(t, ExitOK, h.run("history", "--history-db", h.path("history.db")), h.stderr.String())
	assert.Contains(t, h.stdout.String(), runs[0].ID)
	assert.Contains(t, h.stdout.String(), "Fallback rate over the last 7 days: 33.3%")
}

func TestFailFastExitCodes(t *testing.T) {
	h := newHarness(t, oracle.CompleterFunc(func(context.Context, string) (string, oracle.Usage, error) {
		t.Fatal("oracle must not be called")
		return "", oracle.Usage{}, nil
	}))
	require.NoError(t, os.WriteFile(h.path("bubble_prompt.txt"), []byte("{issue1} vs {issue2}"), 0o644))

	cases := map[string]struct {
		args []string
		want int
	}{
		"missing input": {
			args: []string{"--provider", "none", "--issues", h.path("nope.json"), "--output", h.path("out.json")},
			want: ExitConfiguration,
		},
		"missing template": {
			args: []string{"--provider", "anthropic", "--issues", h.path("in.json"), "--prompt-file", h.path("none.txt"), "--output", h.path("out.json")},
			want: ExitConfiguration,
		},
		"missing credentials": {
			args: []string{"--provider", "anthropic", "--issues", h.path("in.json"), "--prompt-file", h.path("bubble_prompt.txt"), "--output", h.path("out.json")},
			want: ExitConfiguration,
		},
		"unwritable output": {
			args: []string{"--provider", "none", "--issues", h.path("in.json"), "--output", h.path("missing/out.json")},
			want: ExitPersistence,
		},
		"negative budget": {
			args: []string{"--provider", "none", "--strategy", "elo", "--max-comparisons", "-1", "--issues", h.path("in.json")},
			want: ExitConfiguration,
		},
		"NaN budget": {
			args: []string{"--provider", "none", "--strategy", "elo", "--max-comparisons", "NaN", "--issues", h.path("in.json")},
			want: ExitConfiguration,
		},
		"summary of missing output": {
			args: []string{"--summary-only", "--output", h.path("absent.json")},
			want: ExitPersistence,
		},
		"watch without schedule": {
			args: []string{"watch", "--provider", "none", "--issues", h.path("in.json")},
			want: ExitConfiguration,
		},
		"history without database": {
			args: []string{"history"},
			want: ExitConfiguration,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, h.run(tc.args...), h.stderr.String())
		})
	}
	assert.NoFileExists(t, h.path("out.json"))
}

func TestEloOfflineIsReproducible(t *testing.T) {
	h := newHarness(t, nil)
	args := []string{"--provider", "none", "--strategy", "elo", "--max-comparisons", "0.67", "--seed", "3", "--issues", h.path("in.json")}

	require.Equal(t, ExitOK, h.run(append(args, "--output", h.path("a.json"))...), h.stderr.String())
	require.Equal(t, ExitOK, h.run(append(args, "--output", h.path("b.json"))...), h.stderr.String())

	a, err := os.ReadFile(h.path("a.json"))
	require.NoError(t, err)
	b, err := os.ReadFile(h.path("b.json"))
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	records := int64(0)
	for _, n := range gjson.GetBytes(a, "issues.#.comparisonReasoning.#").Array() {
		records += n.Int()
	}
	// floor(3 pairs x 0.67) = 2 comparisons, two records each
	assert.Equal(t, int64(4), records)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitConfiguration, ExitCode(errs.Configuration("x", "", nil)))
	assert.Equal(t, ExitPersistence, ExitCode(errs.Persistence("x", nil)))
	assert.Equal(t, ExitFailure, ExitCode(context.Canceled))
}
