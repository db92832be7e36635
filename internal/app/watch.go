package app

import (
	"context"

	"github.com/spf13/cobra"

	"issuerank/internal/errs"
	"issuerank/internal/logging"
	"issuerank/internal/schedule"
)

func (s *session) watchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Re-rank on the configured cron schedule until interrupted",
		Long: `Runs the configured ranking at every activation of the 5-field cron expression in
"schedule" (e.g. "0 9 * * 1-5" for weekdays at 9am), in "timezone".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return s.watch(cmd.Context())
		},
	}
}

func (s *session) watch(ctx context.Context) error {
	if s.cfg.Schedule == "" {
		return errs.Configuration("watch needs a schedule", `set schedule in the config file or ISSUERANK_SCHEDULE, e.g. "0 9 * * 1-5"`, nil)
	}
	// Check everything once so a broken setup fails now rather than at the first tick.
	p, err := s.prepare(ctx)
	if err != nil {
		return err
	}
	p.close()

	done, err := schedule.Start(ctx, s.cfg.Schedule, s.cfg.Location, s.rankOnce, logging.WithComponent(s.logger, "schedule"))
	if err != nil {
		return err
	}
	<-done
	return nil
}
