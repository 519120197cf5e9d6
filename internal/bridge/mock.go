package bridge

import (
	"context"
	"fmt"
	"sync"
)

// Posted records one Post call for inspection.
type Posted struct {
	Channel string
	Text    string
	Thread  string
}

// MockBridge fabricates thread handles locally. Thread-safe.
type MockBridge struct {
	mu     sync.Mutex
	nextTS int
	Posts  []Posted
	Err    error
	Users  map[string]UserInfo
}

func NewMockBridge() *MockBridge {
	return &MockBridge{Users: map[string]UserInfo{}}
}

func (m *MockBridge) Post(_ context.Context, channel, text, threadID string) (PostResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return PostResult{}, m.Err
	}
	m.Posts = append(m.Posts, Posted{Channel: channel, Text: text, Thread: threadID})
	if threadID == "" {
		m.nextTS++
		threadID = fmt.Sprintf("1700000000.%06d", m.nextTS)
	}
	return PostResult{Channel: channel, Thread: threadID}, nil
}

func (m *MockBridge) LookupUser(_ context.Context, userID string) (UserInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, ok := m.Users[userID]; ok {
		return info, nil
	}
	return UserInfo{Name: userID}, nil
}

// PostCount reports how many messages were sent, for assertions.
func (m *MockBridge) PostCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Posts)
}
