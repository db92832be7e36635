package report

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"issuerank/internal/domain"
)

// Report is what every destination receives once ranking has finished.
type Report struct {
	Items   []domain.Item
	Stats   Stats
	Runtime time.Duration
}

// Notifier is a publication destination such as a spreadsheet or a chat channel.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, rep Report) error
}

// Publish delivers rep to every notifier concurrently. It waits for all of them and returns
// the first failure.
func Publish(ctx context.Context, rep Report, notifiers ...Notifier) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, n := range notifiers {
		if n == nil {
			continue
		}
		g.Go(func() error {
			if err := n.Notify(ctx, rep); err != nil {
				return fmt.Errorf("publish to %s: %w", n.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
