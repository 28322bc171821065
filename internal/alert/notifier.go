package alert

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// Notifier delivers operational alerts (audit append failures, broken
// chains) to an out-of-band channel.
type Notifier interface {
	Notify(ctx context.Context, subject, detail string) error
}

// Nop discards alerts. Used when no alert channel is configured.
type Nop struct{}

func (Nop) Notify(context.Context, string, string) error { return nil }

// SlackNotifier posts alerts to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
}

func NewSlackNotifier(botToken, channel string) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(botToken),
		channel: channel,
	}
}

func (n *SlackNotifier) Notify(ctx context.Context, subject, detail string) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(fmt.Sprintf(":rotating_light: *%s*\n%s", subject, detail), false),
	)
	if err != nil {
		return fmt.Errorf("alert.SlackNotifier.Notify: %w", err)
	}
	return nil
}
