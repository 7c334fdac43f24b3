// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/slipway/internal/notify"
)

// session abstracts the discordgo.Session methods we use, enabling test
// mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// Adapter implements notify.Adapter for Discord. Embeds go over the REST
// API; no gateway connection is opened.
type Adapter struct {
	sess      session
	channelID string
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	Token     string // bot token (without the "Bot " prefix)
	ChannelID string // channel to post to
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.Token == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	a := &Adapter{sess: opts.Session, channelID: opts.ChannelID}
	if a.sess == nil {
		s, err := discordgo.New("Bot " + opts.Token)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		a.sess = s
	}
	return a, nil
}

// Post sends the event as an embed to the configured channel.
func (a *Adapter) Post(ctx context.Context, evt notify.Event) error {
	if _, err := a.sess.ChannelMessageSendEmbed(a.channelID, eventToEmbed(evt)); err != nil {
		return fmt.Errorf("discord: post: %w", err)
	}
	return nil
}

// Close releases the session.
func (a *Adapter) Close() error {
	return a.sess.Close()
}

func eventToEmbed(evt notify.Event) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       evt.Title,
		Description: evt.Body,
		Color:       colorFor(evt.Severity),
	}
	for _, f := range evt.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: true,
		})
	}
	return embed
}

func colorFor(severity string) int {
	switch severity {
	case "success":
		return 0x36a64f
	case "error":
		return 0xcc0000
	default:
		return 0x439fe0
	}
}
