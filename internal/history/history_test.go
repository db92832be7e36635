package history

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "issuerank-test.db"))
	if err != nil {
		t.Fatalf("InitDB failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestInitDBIsRepeatable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "again.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path)
		if err != nil {
			t.Fatalf("InitDB #%d failed: %v", i, err)
		}
		db.Close()
	}
}

func TestRunRoundTrip(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	older := Run{Strategy: "bubble", Provider: "none", ItemCount: 3, OracleCalls: 3, StartedAt: base.Add(-time.Hour), FinishedAt: base.Add(-time.Hour)}
	olderID, err := InsertRun(db, older)
	if err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}
	if len(olderID) != 36 {
		t.Fatalf("expected uuid id, got %q", olderID)
	}

	newer := Run{
		ID:           "fixed-id",
		Strategy:     "elo",
		Provider:     "anthropic",
		Model:        "claude",
		IssuesPath:   "in.json",
		OutputPath:   "out.json",
		ItemCount:    4,
		OracleCalls:  6,
		Fallbacks:    2,
		InputTokens:  100,
		OutputTokens: 40,
		StartedAt:    base,
		FinishedAt:   base.Add(time.Minute),
	}
	if _, err := InsertRun(db, newer); err != nil {
		t.Fatalf("InsertRun failed: %v", err)
	}

	runs, err := ListRuns(db, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	got := runs[0]
	if got.ID != "fixed-id" || got.Strategy != "elo" || got.Fallbacks != 2 || got.OutputTokens != 40 {
		t.Fatalf("unexpected newest run: %+v", got)
	}
	if !got.FinishedAt.Equal(newer.FinishedAt) {
		t.Fatalf("finished_at mismatch: got %v want %v", got.FinishedAt, newer.FinishedAt)
	}
	if runs[1].ID != olderID {
		t.Fatalf("expected older run second, got %s", runs[1].ID)
	}

	limited, err := ListRuns(db, 1)
	if err != nil {
		t.Fatalf("ListRuns(1) failed: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "fixed-id" {
		t.Fatalf("unexpected limited runs: %+v", limited)
	}
}

func TestJudgmentsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	judgments := []Judgment{
		{Seq: 2, FirstID: "B", SecondID: "C", FirstWins: false, Reasoning: "C is exploitable", Fallback: true, Code: "ORACLE_TRANSPORT"},
		{Seq: 1, FirstID: "A", SecondID: "B", FirstWins: true, Reasoning: "A leaks secrets"},
	}
	n, err := InsertJudgments(db, "run-1", judgments)
	if err != nil {
		t.Fatalf("InsertJudgments failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 inserted, got %d", n)
	}
	if _, err := InsertJudgments(db, "run-2", []Judgment{{Seq: 1, FirstID: "Z", Score: 77}}); err != nil {
		t.Fatalf("InsertJudgments run-2 failed: %v", err)
	}

	got, err := GetJudgments(db, "run-1")
	if err != nil {
		t.Fatalf("GetJudgments failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 judgments, got %d", len(got))
	}
	if got[0].Seq != 1 || got[0].FirstID != "A" || !got[0].FirstWins || got[0].Fallback {
		t.Fatalf("unexpected first judgment: %+v", got[0])
	}
	if got[1].Code != "ORACLE_TRANSPORT" || !got[1].Fallback || got[1].RunID != "run-1" {
		t.Fatalf("unexpected second judgment: %+v", got[1])
	}

	scored, err := GetJudgments(db, "run-2")
	if err != nil {
		t.Fatalf("GetJudgments run-2 failed: %v", err)
	}
	if len(scored) != 1 || scored[0].Score != 77 || scored[0].SecondID != "" {
		t.Fatalf("unexpected scored judgments: %+v", scored)
	}
}

func TestFallbackRate(t *testing.T) {
	db := newTestDB(t)
	base := time.Now().UTC().Truncate(time.Second)

	rate, err := FallbackRate(db, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FallbackRate on empty db failed: %v", err)
	}
	if rate != 0 {
		t.Fatalf("expected 0 on empty db, got %v", rate)
	}

	runs := []Run{
		{Strategy: "bubble", OracleCalls: 10, Fallbacks: 5, StartedAt: base.Add(-48 * time.Hour), FinishedAt: base.Add(-48 * time.Hour)},
		{Strategy: "bubble", OracleCalls: 6, Fallbacks: 1, StartedAt: base.Add(-time.Hour), FinishedAt: base},
		{Strategy: "score", OracleCalls: 4, Fallbacks: 1, StartedAt: base, FinishedAt: base},
	}
	for _, r := range runs {
		if _, err := InsertRun(db, r); err != nil {
			t.Fatalf("InsertRun failed: %v", err)
		}
	}

	rate, err = FallbackRate(db, base.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("FallbackRate failed: %v", err)
	}
	if rate != 0.2 {
		t.Fatalf("expected rate 0.2, got %v", rate)
	}
}
