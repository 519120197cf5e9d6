package records

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is a simple in-process transcript store for local/dev use.
type InMemoryStore struct {
	mu        sync.RWMutex
	messages  map[string][]Message
	tickets   []TicketRecord
	feedbacks []Feedback
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{messages: make(map[string][]Message)}
}

func (s *InMemoryStore) SaveMessage(_ context.Context, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

func (s *InMemoryStore) Messages(_ context.Context, sessionID string, limit int) ([]Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.messages[sessionID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Message, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) SaveTicketRecord(_ context.Context, rec TicketRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	s.tickets = append(s.tickets, rec)
	return nil
}

func (s *InMemoryStore) SaveFeedback(_ context.Context, fb Feedback) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fb.ID == "" {
		fb.ID = uuid.NewString()
	}
	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}
	s.feedbacks = append(s.feedbacks, fb)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

// TicketRecords returns a snapshot of saved ticket records, for tests.
func (s *InMemoryStore) TicketRecords() []TicketRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]TicketRecord, len(s.tickets))
	copy(out, s.tickets)
	return out
}
