package app

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"issuerank/internal/errs"
	"issuerank/internal/history"
)

func (s *session) historyCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded ranking runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.history(limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show, 0 for all")
	return cmd
}

func (s *session) history(limit int) error {
	if s.cfg.HistoryDBPath == "" {
		return errs.Configuration("no history database configured", "pass --history-db or set history_db_path", nil)
	}
	db, err := history.InitDB(s.cfg.HistoryDBPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runs, err := history.ListRuns(db, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.app.Stdout, "No runs recorded.")
		return nil
	}

	r := lipgloss.NewRenderer(s.app.Stdout)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(r.NewStyle().Foreground(lipgloss.Color("8"))).
		Headers("RUN", "STARTED", "STRATEGY", "PROVIDER", "ISSUES", "CALLS", "FALLBACKS", "TOKENS")
	for _, run := range runs {
		t.Row(
			run.ID,
			run.StartedAt.In(s.cfg.Location).Format("2006-01-02 15:04"),
			run.Strategy,
			run.Provider,
			fmt.Sprint(run.ItemCount),
			fmt.Sprint(run.OracleCalls),
			fmt.Sprint(run.Fallbacks),
			fmt.Sprint(run.InputTokens+run.OutputTokens),
		)
	}
	fmt.Fprintln(s.app.Stdout, t.String())

	rate, err := history.FallbackRate(db, time.Now().AddDate(0, 0, -7))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.app.Stdout, "Fallback rate over the last 7 days: %.1f%%\n", 100*rate)
	return nil
}
