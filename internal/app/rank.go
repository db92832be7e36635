package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"issuerank/internal/domain"
	"issuerank/internal/errs"
	"issuerank/internal/fallback"
	"issuerank/internal/history"
	"issuerank/internal/httpx"
	"issuerank/internal/issues"
	"issuerank/internal/logging"
	"issuerank/internal/oracle"
	"issuerank/internal/progress"
	"issuerank/internal/ranking"
	"issuerank/internal/report"
)

func (s *session) rank(ctx context.Context) error {
	if s.opts.summaryOnly {
		return s.summarize()
	}
	return s.rankOnce(ctx)
}

// summarize prints the table for an existing output file without consulting the oracle.
func (s *session) summarize() error {
	started := time.Now()
	items, err := issues.LoadOutput(s.cfg.OutputPath)
	if err != nil {
		return err
	}
	if s.cfg.Strategy == ranking.NameScore {
		ranking.SortByScore(items)
	}
	return report.WriteSummary(s.app.Stdout, s.cfg.Strategy, items, time.Since(started))
}

// prepared is everything rankOnce needs once the fail-fast checks have passed.
type prepared struct {
	items    []domain.Item
	strategy ranking.Strategy
	oracle   oracle.Oracle
	db       *sql.DB
}

// prepare runs every check that can fail before the first oracle call: input, prompt
// template, output location, credentials, history database.
func (s *session) prepare(ctx context.Context) (*prepared, error) {
	cfg := s.cfg
	items, err := issues.Load(cfg.IssuesPath)
	if err != nil {
		return nil, err
	}
	strategy, err := ranking.ParseStrategy(cfg.Strategy, cfg.MaxComparisons, cfg.Seed)
	if err != nil {
		return nil, err
	}

	var tmpl oracle.Template
	if cfg.LLMProvider != oracle.ProviderNone {
		kind := oracle.ComparisonTemplate
		if cfg.Strategy == ranking.NameScore {
			kind = oracle.ScoreTemplate
		}
		if tmpl, err = oracle.LoadTemplate(cfg.PromptPath, kind); err != nil {
			return nil, err
		}
	}
	if err := issues.CheckWritable(cfg.OutputPath); err != nil {
		return nil, err
	}
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	p := &prepared{items: items, strategy: strategy}
	if cfg.HistoryDBPath != "" {
		if p.db, err = history.InitDB(cfg.HistoryDBPath); err != nil {
			return nil, err
		}
	}

	if cfg.LLMProvider == oracle.ProviderNone {
		p.oracle = fallback.Oracle{}
		return p, nil
	}
	completer, err := s.app.NewCompleter(ctx, oracle.ProviderConfig{
		Provider:   cfg.LLMProvider,
		Model:      cfg.LLMModel,
		APIKey:     cfg.APIKey(),
		BaseURL:    cfg.LLMBaseURL,
		MaxTokens:  cfg.LLMMaxTokens,
		HTTPClient: httpx.NewClient(cfg.ExternalHTTPTimeoutSeconds),
	})
	if err != nil {
		p.close()
		return nil, errs.Configuration("cannot set up llm provider "+cfg.LLMProvider, "", err)
	}
	p.oracle = oracle.NewLLMOracle(completer, tmpl, logging.WithComponent(s.logger, "oracle"))
	return p, nil
}

func (p *prepared) close() {
	if p.db != nil {
		p.db.Close()
	}
}

func (s *session) rankOnce(ctx context.Context) error {
	started := time.Now()
	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	defer p.close()

	cfg := s.cfg
	s.logger.Info("ranking issues",
		zap.Int("issues", len(p.items)),
		zap.String("strategy", cfg.Strategy),
		zap.String("provider", cfg.LLMProvider),
		zap.String("model", cfg.LLMModel),
	)

	ranker := ranking.Ranker{
		Oracle:   p.oracle,
		Progress: progress.Multi{progress.Log{Logger: s.logger}, progress.NewTerminal(s.app.Stderr)},
		Logger:   logging.WithComponent(s.logger, "ranking"),
	}
	res, err := ranker.Rank(ctx, p.strategy, p.items)
	if err != nil {
		return fmt.Errorf("ranking interrupted after %d judgments: %w", res.OracleCalls(), err)
	}

	if err := issues.Save(cfg.OutputPath, res.Items); err != nil {
		return err
	}
	s.logger.Info("ranking saved", zap.String("output_path", cfg.OutputPath), zap.Int("fallbacks", res.Fallbacks()))

	var usage oracle.Usage
	if ur, ok := p.oracle.(oracle.UsageReporter); ok {
		usage = ur.Usage()
	}
	rep := report.Report{Items: res.Items, Stats: report.Summarize(res, usage), Runtime: time.Since(started)}
	if err := report.WriteSummary(s.app.Stdout, cfg.Strategy, res.Items, rep.Runtime); err != nil {
		return err
	}
	fmt.Fprintln(s.app.Stdout, rep.Stats.String())

	if p.db != nil {
		if err := s.record(p.db, res, rep, started); err != nil {
			return err
		}
	}
	return report.Publish(ctx, rep, s.notifiers()...)
}

func (s *session) notifiers() []report.Notifier {
	var ns []report.Notifier
	if s.cfg.XLSXOutputPath != "" {
		ns = append(ns, report.XLSXExporter{Path: s.cfg.XLSXOutputPath})
	}
	if s.cfg.SlackConfigured() {
		ns = append(ns, report.NewSlackNotifier(s.cfg.SlackBotToken, s.cfg.SlackChannelID))
	}
	return ns
}

func (s *session) record(db *sql.DB, res ranking.Result, rep report.Report, started time.Time) error {
	cfg := s.cfg
	runID, err := history.InsertRun(db, history.Run{
		Strategy:     res.Strategy,
		Provider:     cfg.LLMProvider,
		Model:        cfg.LLMModel,
		IssuesPath:   cfg.IssuesPath,
		OutputPath:   cfg.OutputPath,
		ItemCount:    len(res.Items),
		OracleCalls:  res.OracleCalls(),
		Fallbacks:    res.Fallbacks(),
		InputTokens:  rep.Stats.Usage.InputTokens,
		OutputTokens: rep.Stats.Usage.OutputTokens,
		StartedAt:    started,
		FinishedAt:   time.Now(),
	})
	if err != nil {
		return err
	}

	judgments := make([]history.Judgment, len(res.Judgments))
	for i, j := range res.Judgments {
		judgments[i] = history.Judgment{
			RunID:     runID,
			Seq:       j.Seq,
			FirstID:   j.FirstID,
			SecondID:  j.SecondID,
			FirstWins: j.FirstWins,
			Score:     j.Score,
			Reasoning: j.Reasoning,
			Fallback:  j.Fallback,
			Code:      string(j.Code),
		}
	}
	if _, err := history.InsertJudgments(db, runID, judgments); err != nil {
		return err
	}
	logging.WithRun(s.logger, runID).Info("run recorded", zap.String("history_db", cfg.HistoryDBPath))
	return nil
}
