package history

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// InMemoryStore is a process-local session store for local/dev use and tests.
type InMemoryStore struct {
	mu         sync.RWMutex
	histories  map[string][]Turn
	expiries   map[string]time.Time
	values     map[string]entry
	maxEntries int
	historyTTL time.Duration
	now        func() time.Time
}

type entry struct {
	payload   []byte
	expiresAt time.Time
}

func NewInMemoryStore(maxEntries int, historyTTL time.Duration) *InMemoryStore {
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if historyTTL <= 0 {
		historyTTL = 7 * 24 * time.Hour
	}
	return &InMemoryStore{
		histories:  make(map[string][]Turn),
		expiries:   make(map[string]time.Time),
		values:     make(map[string]entry),
		maxEntries: maxEntries,
		historyTTL: historyTTL,
		now:        time.Now,
	}
}

func (s *InMemoryStore) History(_ context.Context, sessionID string, max int) ([]Turn, error) {
	if max <= 0 {
		max = 20
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if exp, ok := s.expiries[sessionID]; ok && s.now().After(exp) {
		return nil, nil
	}
	turns := s.histories[sessionID]
	if len(turns) > max {
		turns = turns[:max]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp, ok := s.expiries[sessionID]; ok && s.now().After(exp) {
		delete(s.histories, sessionID)
	}
	turns := append([]Turn{turn}, s.histories[sessionID]...)
	if len(turns) > s.maxEntries {
		turns = turns[:s.maxEntries]
	}
	s.histories[sessionID] = turns
	s.expiries[sessionID] = s.now().Add(s.historyTTL)
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.histories, sessionID)
	delete(s.expiries, sessionID)
	return nil
}

func (s *InMemoryStore) SetValue(ctx context.Context, sessionID, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.setRaw(valueKey(sessionID, key), payload, ttl)
}

func (s *InMemoryStore) GetValue(ctx context.Context, sessionID, key string, dest any) (bool, error) {
	raw, ok := s.getRaw(valueKey(sessionID, key))
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *InMemoryStore) DeleteValue(ctx context.Context, sessionID, key string) error {
	return s.DeleteKey(ctx, valueKey(sessionID, key))
}

func (s *InMemoryStore) SetKey(_ context.Context, key, value string, ttl time.Duration) error {
	return s.setRaw(key, []byte(value), ttl)
}

func (s *InMemoryStore) GetKey(_ context.Context, key string) (string, bool, error) {
	raw, ok := s.getRaw(key)
	if !ok {
		return "", false, nil
	}
	return string(raw), true, nil
}

func (s *InMemoryStore) DeleteKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

func (s *InMemoryStore) setRaw(key string, payload []byte, ttl time.Duration) error {
	exp := time.Time{}
	if ttl > 0 {
		exp = s.now().Add(ttl)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = entry{payload: payload, expiresAt: exp}
	return nil
}

func (s *InMemoryStore) getRaw(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.values[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		return nil, false
	}
	return e.payload, true
}
