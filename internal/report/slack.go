package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/slack-go/slack"
)

// DefaultSlackTop is how many ranked issues a Slack message lists.
const DefaultSlackTop = 10

type SlackNotifier struct {
	api     *slack.Client
	channel string
	top     int
}

// NewSlackNotifier posts to channel with the bot token. Options are passed to the Slack client.
func NewSlackNotifier(token, channel string, opts ...slack.Option) *SlackNotifier {
	return &SlackNotifier{api: slack.New(token, opts...), channel: channel, top: DefaultSlackTop}
}

func (s *SlackNotifier) Name() string { return "slack" }

func (s *SlackNotifier) Notify(ctx context.Context, rep Report) error {
	_, _, err := s.api.PostMessageContext(ctx, s.channel, slack.MsgOptionText(FormatSlackMessage(rep, s.top), false))
	if err != nil {
		return fmt.Errorf("post ranking to %s: %w", s.channel, err)
	}
	return nil
}

// FormatSlackMessage lists the top issues followed by the run statistics.
func FormatSlackMessage(rep Report, top int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* (%d issues, %.1fs)\n", Title(rep.Stats.Strategy), len(rep.Items), rep.Runtime.Seconds())
	shown := rep.Items
	if top > 0 && len(shown) > top {
		shown = shown[:top]
	}
	for i, it := range shown {
		line := fmt.Sprintf("%d. [%s] %s", i+1, severity(it), truncate(it.Title(), 100))
		if v := value(rep.Stats.Strategy, it); v != "-" {
			line += fmt.Sprintf(" (%s)", v)
		}
		if id := it.ID(); id != "" {
			line += " `" + id + "`"
		}
		b.WriteString(line + "\n")
	}
	if more := len(rep.Items) - len(shown); more > 0 {
		fmt.Fprintf(&b, "_...and %d more_\n", more)
	}
	b.WriteString("```\n" + rep.Stats.String() + "\n```")
	return b.String()
}
