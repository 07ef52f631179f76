package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts ticket alerts to a Slack channel as a colored attachment.
type Slack struct {
	client  slackClient
	channel string
}

// NewSlack returns a Slack notifier using a bot token.
func NewSlack(token, channel string) *Slack {
	return &Slack{client: slackapi.New(token), channel: channel}
}

// Name implements Notifier.
func (s *Slack) Name() string { return "slack" }

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, a Alert) error {
	attachment := slackapi.Attachment{
		Color: "#36a64f",
		Title: a.Title(),
		Text:  a.Body(),
		Fields: []slackapi.AttachmentField{
			{Title: "Hat", Value: a.Route(), Short: true},
			{Title: "Tarih", Value: a.Date, Short: true},
		},
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slackapi.MsgOptionText(a.Title(), false),
		slackapi.MsgOptionAttachments(attachment),
	)
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}
