package bridge

import (
	"context"

	"github.com/sirupsen/logrus"
)

// PostResult identifies where a posted message landed. Thread is the handle
// replies must target to stay in the same conversation.
type PostResult struct {
	Channel string `json:"channel"`
	Thread  string `json:"thread"`
}

// UserInfo is the directory record behind a bridge user ID.
type UserInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Event is an inbound message from the support workspace, delivered through
// the webhook endpoint.
type Event struct {
	Channel string `json:"channel"`
	Thread  string `json:"thread_ts"`
	UserID  string `json:"user"`
	Text    string `json:"text"`
	Subtype string `json:"subtype"`
}

// Bridge connects the service to the support team's messaging workspace.
type Bridge interface {
	// Post sends text to a channel, inside threadID when non-empty. The
	// returned Thread is the handle for follow-ups.
	Post(ctx context.Context, channel, text, threadID string) (PostResult, error)
	// LookupUser resolves a workspace user ID to a display name and email.
	LookupUser(ctx context.Context, userID string) (UserInfo, error)
}

// Config selects and parameterizes the bridge implementation.
type Config struct {
	Mode string // auto, slack, discord or mock

	SlackBotToken string
	DiscordToken  string
}

// New picks the bridge implementation. Auto mode prefers Slack, then
// Discord, then the mock, based on which token is configured.
func New(cfg Config, logger *logrus.Logger) (Bridge, error) {
	mode := cfg.Mode
	if mode == "" || mode == "auto" {
		switch {
		case cfg.SlackBotToken != "":
			mode = "slack"
		case cfg.DiscordToken != "":
			mode = "discord"
		default:
			mode = "mock"
		}
	}

	switch mode {
	case "slack":
		return NewSlackBridge(cfg.SlackBotToken, logger), nil
	case "discord":
		return NewDiscordBridge(cfg.DiscordToken, logger)
	default:
		logger.Warn("no messaging bridge configured, using mock")
		return NewMockBridge(), nil
	}
}
