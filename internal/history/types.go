package history

import (
	"context"
	"time"
)

// Turn is one completed (user message, bot reply) exchange.
type Turn struct {
	User string `json:"user"`
	Bot  string `json:"bot"`
}

// Store is the per-session cache: bounded conversation history plus generic
// keyed values with TTL (escalation state, pending choices, reverse indexes).
//
// History reads return the most recent turn first. Appends are not atomic
// across concurrent writers for a single session; the transport layer
// serializes message handling per session instead.
type Store interface {
	History(ctx context.Context, sessionID string, max int) ([]Turn, error)
	Append(ctx context.Context, sessionID string, turn Turn) error
	Clear(ctx context.Context, sessionID string) error

	SetValue(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error
	GetValue(ctx context.Context, sessionID, key string, dest any) (bool, error)
	DeleteValue(ctx context.Context, sessionID, key string) error

	SetKey(ctx context.Context, key, value string, ttl time.Duration) error
	GetKey(ctx context.Context, key string) (string, bool, error)
	DeleteKey(ctx context.Context, key string) error

	Close() error
}

// Chronological returns a copy of a most-recent-first history in oldest-first
// order, for prompt construction.
func Chronological(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	for i, t := range turns {
		out[len(turns)-1-i] = t
	}
	return out
}
