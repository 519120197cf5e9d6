package records

import (
	"context"
	"time"
)

// Message types persisted in the transcript. Human replies relayed through
// the support bridge are a distinct category from bot output.
const (
	TypeUser  = "user"
	TypeBot   = "bot"
	TypeHuman = "human"
)

// Message is one persisted transcript entry.
type Message struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	UserID    string         `json:"user_id"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Agent     string         `json:"agent,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// TicketRecord mirrors a ticket opened in the external ticketing system.
type TicketRecord struct {
	ID          string    `json:"id"`
	ExternalID  string    `json:"external_id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	Description string    `json:"description"`
	Agent       string    `json:"agent"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// Feedback is a user rating of a bot reply.
type Feedback struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists transcripts, ticket references and feedback.
type Store interface {
	SaveMessage(ctx context.Context, msg Message) error
	Messages(ctx context.Context, sessionID string, limit int) ([]Message, error)
	SaveTicketRecord(ctx context.Context, rec TicketRecord) error
	SaveFeedback(ctx context.Context, fb Feedback) error
	Close() error
}
