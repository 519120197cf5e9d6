package tickets

import (
	"context"
	"sync"
)

// MockCreator hands out sequential ticket IDs and remembers every request.
// Used when no helpdesk is configured and throughout the tests.
type MockCreator struct {
	mu       sync.Mutex
	nextID   int64
	Requests []CreateRequest
	Err      error
}

func NewMockCreator() *MockCreator {
	return &MockCreator{nextID: 1000}
}

func (m *MockCreator) Create(_ context.Context, req CreateRequest) (Ticket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return Ticket{}, m.Err
	}
	m.nextID++
	m.Requests = append(m.Requests, req)
	return Ticket{
		ID:     m.nextID,
		Name:   "Support IT - " + truncateRunes(req.Description, 50),
		Status: "created",
	}, nil
}
