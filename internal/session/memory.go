package session

import (
	"context"
	"sync"
	"time"

	"worklogbot/internal/domain"
)

// MemoryStore keeps conversation states in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	states map[string]memoryState
	ttl    time.Duration
	now    func() time.Time
}

type memoryState struct {
	state     domain.State
	updatedAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{states: make(map[string]memoryState), ttl: ttl, now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (domain.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[userID]
	if !ok {
		return domain.StateIdle, nil
	}
	if domain.Expired(s.state, s.updatedAt, m.now(), m.ttl) {
		delete(m.states, userID)
		return domain.StateIdle, nil
	}
	return s.state, nil
}

func (m *MemoryStore) Set(_ context.Context, userID string, state domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if state == domain.StateIdle {
		delete(m.states, userID)
		return nil
	}
	m.states[userID] = memoryState{state: state, updatedAt: m.now()}
	return nil
}
