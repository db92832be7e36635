// Package history keeps a sqlite ledger of ranking runs and the judgments behind them.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"issuerank/internal/errs"
)

type Run struct {
	ID           string
	Strategy     string
	Provider     string
	Model        string
	IssuesPath   string
	OutputPath   string
	ItemCount    int
	OracleCalls  int
	Fallbacks    int
	InputTokens  int64
	OutputTokens int64
	StartedAt    time.Time
	FinishedAt   time.Time
}

type Judgment struct {
	RunID     string
	Seq       int
	FirstID   string
	SecondID  string
	FirstWins bool
	Score     int
	Reasoning string
	Fallback  bool
	Code      string
}

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.Persistence("open history database "+path, err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS ranking_runs (
		id            TEXT PRIMARY KEY,
		strategy      TEXT NOT NULL,
		provider      TEXT DEFAULT '',
		model         TEXT DEFAULT '',
		issues_path   TEXT DEFAULT '',
		output_path   TEXT DEFAULT '',
		item_count    INTEGER NOT NULL DEFAULT 0,
		oracle_calls  INTEGER NOT NULL DEFAULT 0,
		fallbacks     INTEGER NOT NULL DEFAULT 0,
		input_tokens  INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		started_at    DATETIME NOT NULL,
		finished_at   DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started_at ON ranking_runs(started_at);

	CREATE TABLE IF NOT EXISTS ranking_judgments (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		first_id   TEXT NOT NULL,
		second_id  TEXT DEFAULT '',
		first_wins INTEGER NOT NULL DEFAULT 0,
		score      INTEGER NOT NULL DEFAULT 0,
		reasoning  TEXT DEFAULT '',
		fallback   INTEGER NOT NULL DEFAULT 0,
		code       TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_judgments_run ON ranking_judgments(run_id, seq);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.Persistence("initialize history database "+path, err)
	}
	return db, nil
}

// InsertRun stores run, assigning a new uuid when run.ID is empty, and returns the id used.
func InsertRun(db *sql.DB, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	_, err := db.Exec(
		`INSERT INTO ranking_runs (id, strategy, provider, model, issues_path, output_path, item_count,
		   oracle_calls, fallbacks, input_tokens, output_tokens, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Strategy, run.Provider, run.Model, run.IssuesPath, run.OutputPath, run.ItemCount,
		run.OracleCalls, run.Fallbacks, run.InputTokens, run.OutputTokens, run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return "", errs.Persistence("insert ranking run", err)
	}
	return run.ID, nil
}

func InsertJudgments(db *sql.DB, runID string, judgments []Judgment) (int, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, errs.Persistence("begin judgment insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO ranking_judgments (run_id, seq, first_id, second_id, first_wins, score, reasoning, fallback, code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return 0, errs.Persistence("prepare judgment insert", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, j := range judgments {
		_, err := stmt.Exec(runID, j.Seq, j.FirstID, j.SecondID, j.FirstWins, j.Score, j.Reasoning, j.Fallback, j.Code)
		if err != nil {
			return inserted, errs.Persistence(fmt.Sprintf("insert judgment %d", j.Seq), err)
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.Persistence("commit judgments", err)
	}
	return inserted, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less returns all runs.
func ListRuns(db *sql.DB, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.Query(
		`SELECT id, strategy, provider, model, issues_path, output_path, item_count, oracle_calls,
		   fallbacks, input_tokens, output_tokens, started_at, finished_at
		 FROM ranking_runs ORDER BY started_at DESC, id LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, errs.Persistence("list ranking runs", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		err := rows.Scan(
			&r.ID, &r.Strategy, &r.Provider, &r.Model, &r.IssuesPath, &r.OutputPath, &r.ItemCount,
			&r.OracleCalls, &r.Fallbacks, &r.InputTokens, &r.OutputTokens, &r.StartedAt, &r.FinishedAt,
		)
		if err != nil {
			return nil, errs.Persistence("scan ranking run", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("list ranking runs", err)
	}
	return runs, nil
}

func GetJudgments(db *sql.DB, runID string) ([]Judgment, error) {
	rows, err := db.Query(
		`SELECT run_id, seq, first_id, second_id, first_wins, score, reasoning, fallback, code
		 FROM ranking_judgments WHERE run_id = ? ORDER BY seq`,
		runID,
	)
	if err != nil {
		return nil, errs.Persistence("get judgments", err)
	}
	defer rows.Close()

	var out []Judgment
	for rows.Next() {
		var j Judgment
		if err := rows.Scan(&j.RunID, &j.Seq, &j.FirstID, &j.SecondID, &j.FirstWins, &j.Score, &j.Reasoning, &j.Fallback, &j.Code); err != nil {
			return nil, errs.Persistence("scan judgment", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Persistence("get judgments", err)
	}
	return out, nil
}

// FallbackRate is the share of judgments recorded since the given time that came from the
// fallback policy. It is zero when there are none.
func FallbackRate(db *sql.DB, since time.Time) (float64, error) {
	var total, fallbacks sql.NullInt64
	err := db.QueryRow(
		`SELECT COALESCE(SUM(oracle_calls), 0), COALESCE(SUM(fallbacks), 0)
		 FROM ranking_runs WHERE started_at >= ?`,
		since.UTC(),
	).Scan(&total, &fallbacks)
	if err != nil {
		return 0, errs.Persistence("compute fallback rate", err)
	}
	if total.Int64 == 0 {
		return 0, nil
	}
	return float64(fallbacks.Int64) / float64(total.Int64), nil
}
