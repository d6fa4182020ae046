package revocation

import (
	"context"
	"sync"
	"time"
)

// Memory is the default revocation list for single-process deployments.
// Expired entries are evicted lazily on lookup.
type Memory struct {
	mu     sync.RWMutex
	expiry map[string]time.Time
	clock  func() time.Time
}

// MemoryOption configures a Memory instance.
type MemoryOption func(*Memory)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) MemoryOption {
	return func(m *Memory) {
		if clock != nil {
			m.clock = clock
		}
	}
}

func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		expiry: make(map[string]time.Time),
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiry[tokenID] = m.clock().Add(ttl)
	return nil
}

func (m *Memory) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.RLock()
	deadline, ok := m.expiry[tokenID]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if m.clock().After(deadline) {
		m.mu.Lock()
		delete(m.expiry, tokenID)
		m.mu.Unlock()
		return false, nil
	}
	return true, nil
}
