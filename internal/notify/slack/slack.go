// Package slack implements the notify Adapter for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/slipway/internal/notify"
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessage(channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements notify.Adapter for Slack. Posting is plain Web API;
// no socket connection is held.
type Adapter struct {
	client    client
	channelID string
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	Token     string // xoxb-... Slack bot token
	ChannelID string // channel to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client client
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.Token == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	a := &Adapter{client: opts.Client, channelID: opts.ChannelID}
	if a.client == nil {
		a.client = slackapi.New(opts.Token)
	}
	return a, nil
}

// Post sends the event as an attachment to the configured channel.
func (a *Adapter) Post(ctx context.Context, evt notify.Event) error {
	_, _, err := a.client.PostMessage(a.channelID,
		slackapi.MsgOptionAttachments(eventToAttachment(evt)))
	if err != nil {
		return fmt.Errorf("slack: post: %w", err)
	}
	return nil
}

// Close is a no-op; the adapter holds no connection.
func (a *Adapter) Close() error { return nil }

func eventToAttachment(evt notify.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title: evt.Title,
		Text:  evt.Body,
		Color: colorFor(evt.Severity),
	}
	for _, f := range evt.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: true,
		})
	}
	return att
}

func colorFor(severity string) string {
	switch severity {
	case "success":
		return "#36a64f"
	case "error":
		return "#cc0000"
	default:
		return "#439fe0"
	}
}
