package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const slackAPIBase = "https://slack.com/api"

// SlackBridge talks to the Slack Web API with a bot token. Threads map to
// Slack's thread_ts message timestamps.
type SlackBridge struct {
	token      string
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewSlackBridge(token string, logger *logrus.Logger) *SlackBridge {
	return &SlackBridge{
		token:      token,
		baseURL:    slackAPIBase,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

type slackPostResponse struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error"`
	Channel string `json:"channel"`
	TS      string `json:"ts"`
}

func (b *SlackBridge) Post(ctx context.Context, channel, text, threadID string) (PostResult, error) {
	payload := map[string]string{
		"channel": channel,
		"text":    text,
	}
	if threadID != "" {
		payload["thread_ts"] = threadID
	}

	var resp slackPostResponse
	if err := b.callJSON(ctx, "chat.postMessage", payload, &resp); err != nil {
		return PostResult{}, err
	}
	if !resp.OK {
		return PostResult{}, fmt.Errorf("slack chat.postMessage: %s", resp.Error)
	}

	b.logger.WithFields(logrus.Fields{
		"channel":   resp.Channel,
		"thread_ts": threadID,
	}).Info("slack message sent")

	thread := threadID
	if thread == "" {
		thread = resp.TS
	}
	return PostResult{Channel: resp.Channel, Thread: thread}, nil
}

type slackUserResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	User  struct {
		RealName string `json:"real_name"`
		Profile  struct {
			Email string `json:"email"`
		} `json:"profile"`
	} `json:"user"`
}

func (b *SlackBridge) LookupUser(ctx context.Context, userID string) (UserInfo, error) {
	endpoint := fmt.Sprintf("%s/users.info?user=%s", b.baseURL, url.QueryEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return UserInfo{}, fmt.Errorf("build users.info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)

	httpResp, err := b.httpClient.Do(req)
	if err != nil {
		return UserInfo{}, fmt.Errorf("slack users.info: %w", err)
	}
	defer httpResp.Body.Close()

	var resp slackUserResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return UserInfo{}, fmt.Errorf("decode users.info response: %w", err)
	}
	if !resp.OK {
		return UserInfo{}, fmt.Errorf("slack users.info: %s", resp.Error)
	}
	return UserInfo{Name: resp.User.RealName, Email: resp.User.Profile.Email}, nil
}

func (b *SlackBridge) callJSON(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(b.baseURL, "/")+"/"+method, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", method, err)
	}
	req.Header.Set("Authorization", "Bearer "+b.token)
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack %s: unexpected status %d", method, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
