package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vygeek/vybuddy/internal/reliability"
)

const (
	defaultTimeout   = 60 * time.Second
	maxErrorBodySize = 4 << 10
)

var retryPolicy = reliability.Policy{
	MaxAttempts: 2,
	Base:        200 * time.Millisecond,
	Cap:         2 * time.Second,
}

// HTTPClient forwards requests to a generation gateway that multiplexes the
// openai/anthropic/gemini providers behind one JSON endpoint.
type HTTPClient struct {
	url    string
	client *http.Client
}

func NewHTTPClient(url string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &HTTPClient{
		url:    strings.TrimSpace(url),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	return c.Stream(ctx, req, nil)
}

func (c *HTTPClient) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= retryPolicy.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryPolicy.Delay(attempt - 1)):
			}
		}

		text, retryable, err := c.doOnce(ctx, payload, onDelta)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}
	return "", lastErr
}

func (c *HTTPClient) doOnce(ctx context.Context, payload []byte, onDelta DeltaHandler) (text string, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBodySize))
		return "", reliability.IsRetryableHTTPStatus(res.StatusCode),
			fmt.Errorf("llm gateway status %d: %s", res.StatusCode, string(body))
	}

	ct := strings.ToLower(res.Header.Get("Content-Type"))
	if strings.Contains(ct, "text/event-stream") || strings.Contains(ct, "application/x-ndjson") {
		text, err = consumeStreaming(res.Body, onDelta)
		return text, false, err
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", false, fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	if err := json.Unmarshal(body, &obj); err != nil {
		text = strings.TrimSpace(string(body))
	} else {
		text = extractText(obj)
	}
	if text != "" && onDelta != nil {
		if err := onDelta(text); err != nil {
			return "", false, err
		}
	}
	return text, false, nil
}

func consumeStreaming(body io.Reader, onDelta DeltaHandler) (string, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var out strings.Builder
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}

		delta := line
		var obj map[string]any
		if err := json.Unmarshal([]byte(line), &obj); err == nil {
			delta = strings.TrimSpace(extractText(obj))
		}

		if delta == "" {
			continue
		}
		out.WriteString(delta)
		if onDelta != nil {
			if err := onDelta(delta); err != nil {
				return "", err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("stream read: %w", err)
	}

	return out.String(), nil
}

func extractText(obj map[string]any) string {
	for _, k := range []string{"text", "delta", "output", "message"} {
		if v, ok := obj[k]; ok {
			if s, ok := v.(string); ok {
				return s
			}
		}
	}
	return ""
}
