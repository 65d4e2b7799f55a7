package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender delivers direct messages to linked Discord users and posts
// announcements to a guild channel.
type DiscordSender struct {
	session *discordgo.Session
}

func NewDiscordSession(botToken string) (*discordgo.Session, error) {
	if botToken == "" {
		return nil, fmt.Errorf("discord bot token is empty")
	}
	return discordgo.New("Bot " + botToken)
}

func NewDiscordSender(session *discordgo.Session) *DiscordSender {
	return &DiscordSender{session: session}
}

// Send treats recipient as a Discord user ID and opens a DM channel first.
func (s *DiscordSender) Send(ctx context.Context, recipient, text string) error {
	if s.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	channel, err := s.session.UserChannelCreate(recipient, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	_, err = s.session.ChannelMessageSend(channel.ID, text, discordgo.WithContext(ctx))
	return err
}

// DiscordChannelSender posts to a channel ID taken from the message recipient.
type DiscordChannelSender struct {
	session *discordgo.Session
}

func NewDiscordChannelSender(session *discordgo.Session) *DiscordChannelSender {
	return &DiscordChannelSender{session: session}
}

func (s *DiscordChannelSender) Send(ctx context.Context, channelID, text string) error {
	if s.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}
	_, err := s.session.ChannelMessageSend(channelID, text, discordgo.WithContext(ctx))
	return err
}
