package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Backend identifies a generation provider reachable through the gateway.
type Backend string

const (
	BackendOpenAI    Backend = "openai"
	BackendAnthropic Backend = "anthropic"
	BackendGemini    Backend = "gemini"
)

// Request is the normalized request sent to a generation backend.
type Request struct {
	Backend Backend `json:"backend"`
	System  string  `json:"system,omitempty"`
	Prompt  string  `json:"prompt"`
}

// DeltaHandler receives streaming text fragments.
type DeltaHandler func(delta string) error

// Client produces a complete reply for a prompt.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Streamer is optionally implemented by clients that can deliver the reply
// as incremental fragments while it is generated.
type Streamer interface {
	Stream(ctx context.Context, req Request, onDelta DeltaHandler) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode       string
	GatewayURL string
	Timeout    time.Duration
}

// NewClient builds the generation client for the configured mode.
func NewClient(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.GatewayURL) != "" {
			return NewHTTPClient(cfg.GatewayURL, cfg.Timeout), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.GatewayURL) == "" {
			return nil, errors.New("LLM gateway url is required for http mode")
		}
		return NewHTTPClient(cfg.GatewayURL, cfg.Timeout), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM adapter mode %q", cfg.Mode)
	}
}

// NormalizeBackend maps an arbitrary label onto a known backend, defaulting
// to OpenAI the way the routing rules do.
func NormalizeBackend(label string) Backend {
	switch Backend(strings.ToLower(strings.TrimSpace(label))) {
	case BackendAnthropic:
		return BackendAnthropic
	case BackendGemini:
		return BackendGemini
	default:
		return BackendOpenAI
	}
}
