package storage

import (
	"bytes"
	"context"
	"sync"

	"github.com/ruteri/timelock-vault/interfaces"
)

// MemoryStore keeps records in process. Used by tests and throwaway devnets.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[interfaces.Address][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[interfaces.Address][]byte)}
}

func (m *MemoryStore) Load(ctx context.Context, addr interfaces.Address) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.records[addr]
	if !ok {
		return nil, interfaces.ErrRecordNotFound
	}
	return bytes.Clone(data), nil
}

func (m *MemoryStore) Save(ctx context.Context, addr interfaces.Address, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.records[addr] = bytes.Clone(data)
	return nil
}

func (m *MemoryStore) Available(ctx context.Context) bool { return true }

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) LocationURI() string { return "memory://" }
