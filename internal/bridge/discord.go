package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// DiscordBridge maps the escalation thread model onto Discord: the first post
// in a channel starts a public thread on the notification message, and
// follow-ups are sent into that thread (thread IDs are channel IDs there).
type DiscordBridge struct {
	session *discordgo.Session
	logger  *logrus.Logger
}

func NewDiscordBridge(token string, logger *logrus.Logger) (*DiscordBridge, error) {
	session, err := discordgo.New(normalizeBotToken(token))
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &DiscordBridge{session: session, logger: logger}, nil
}

func (b *DiscordBridge) Post(_ context.Context, channel, text, threadID string) (PostResult, error) {
	if threadID != "" {
		if _, err := b.session.ChannelMessageSend(threadID, text); err != nil {
			return PostResult{}, fmt.Errorf("discord thread send: %w", err)
		}
		return PostResult{Channel: channel, Thread: threadID}, nil
	}

	msg, err := b.session.ChannelMessageSend(channel, text)
	if err != nil {
		return PostResult{}, fmt.Errorf("discord send: %w", err)
	}

	thread, err := b.session.MessageThreadStartComplex(channel, msg.ID, &discordgo.ThreadStart{
		Name:                "Support " + msg.ID,
		AutoArchiveDuration: 1440,
	})
	if err != nil {
		return PostResult{}, fmt.Errorf("discord thread start: %w", err)
	}

	b.logger.WithFields(logrus.Fields{
		"channel": channel,
		"thread":  thread.ID,
	}).Info("discord escalation thread opened")

	return PostResult{Channel: channel, Thread: thread.ID}, nil
}

func (b *DiscordBridge) LookupUser(_ context.Context, userID string) (UserInfo, error) {
	user, err := b.session.User(userID)
	if err != nil {
		return UserInfo{}, fmt.Errorf("discord user lookup: %w", err)
	}
	name := user.GlobalName
	if name == "" {
		name = user.Username
	}
	return UserInfo{Name: name, Email: user.Email}, nil
}

func normalizeBotToken(token string) string {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(strings.ToLower(token), "bot ") {
		return token
	}
	return "Bot " + token
}
