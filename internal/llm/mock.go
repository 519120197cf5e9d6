package llm

import (
	"context"
	"fmt"
	"strings"
)

// MockClient provides deterministic local replies when no gateway is configured.
type MockClient struct{}

func NewMockClient() *MockClient { return &MockClient{} }

func (c *MockClient) Complete(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	return buildMockReply(req), nil
}

func (c *MockClient) Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error) {
	text, err := c.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	if onDelta != nil && text != "" {
		if err := onDelta(text); err != nil {
			return "", err
		}
	}
	return text, nil
}

func buildMockReply(req Request) string {
	base := strings.TrimSpace(req.Prompt)
	if base == "" {
		return "Je vous écoute."
	}
	if runes := []rune(base); len(runes) > 120 {
		base = string(runes[:120])
	}
	return fmt.Sprintf("[%s] J'ai bien reçu votre demande : %s", req.Backend, base)
}
