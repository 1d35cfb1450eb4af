package presence

import (
	"context"
	"sync"
)

// Memory is an in-process presence store with the same semantics as the Redis
// store. It is used for single-node deployments (no REDIS_ADDR configured)
// and in tests.
type Memory struct {
	mu     sync.Mutex
	online map[string]int
}

// NewMemory returns an empty in-memory presence store.
func NewMemory() *Memory {
	return &Memory{online: make(map[string]int)}
}

// Add registers one more open connection for the identity.
func (m *Memory) Add(_ context.Context, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.online[identityID]++
	return nil
}

// Remove unregisters one connection for the identity, clearing the entry when
// no connections remain. Removing an absent identity is a no-op.
func (m *Memory) Remove(_ context.Context, identityID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	count, ok := m.online[identityID]
	if !ok {
		return nil
	}

	if count <= 1 {
		delete(m.online, identityID)
		return nil
	}

	m.online[identityID] = count - 1
	return nil
}

// Count returns the number of distinct identities with at least one open connection.
func (m *Memory) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.online), nil
}
