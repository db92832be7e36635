// Package schedule re-runs a job on a standard 5-field cron expression
// (minute hour day-of-month month day-of-week), e.g. "0 9 * * 1-5" for weekdays at 9am.
package schedule

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"issuerank/internal/errs"
)

// Job is one scheduled execution. Its error is logged and does not stop the schedule.
type Job func(ctx context.Context) error

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

func Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errs.Configuration("schedule is empty", `set schedule, e.g. "0 9 * * 1-5"`, nil)
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, errs.Configuration(fmt.Sprintf("invalid schedule %q", spec), "use a 5-field cron expression", err)
	}
	return sched, nil
}

// Start runs job at every activation of spec in loc until ctx is cancelled. The returned
// channel is closed once the loop has exited.
func Start(ctx context.Context, spec string, loc *time.Location, job Job, logger *zap.Logger) (<-chan struct{}, error) {
	sched, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("ranking scheduled", zap.String("cron", spec), zap.String("timezone", loc.String()))

	done := make(chan struct{})
	go func() {
		defer close(done)
		loop(ctx, sched, loc, job, logger)
	}()
	return done, nil
}

func loop(ctx context.Context, sched cron.Schedule, loc *time.Location, job Job, logger *zap.Logger) {
	for {
		now := time.Now().In(loc)
		next := sched.Next(now)
		wait := next.Sub(now)
		logger.Info("next scheduled ranking", zap.Time("at", next), zap.Duration("in", wait.Round(time.Second)))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("scheduler stopped")
			return
		case <-timer.C:
		}

		started := time.Now()
		if err := job(ctx); err != nil {
			logger.Error("scheduled ranking failed", zap.Error(err))
			continue
		}
		logger.Info("scheduled ranking complete", zap.Duration("took", time.Since(started)))
	}
}
