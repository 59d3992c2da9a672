package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Memory is an in-process Store for tests and local development. Hashes are
// hex SHA-256 of the content, so identical bytes map to identical hashes the
// way a real content-addressed network behaves.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
	names map[string]string
	down  bool
}

// NewMemory creates an empty in-memory content store.
func NewMemory() *Memory {
	return &Memory{
		blobs: make(map[string][]byte),
		names: make(map[string]string),
	}
}

// SetUnavailable makes every subsequent call fail with ErrUnavailable, for
// exercising degraded read paths.
func (m *Memory) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}

func (m *Memory) Put(_ context.Context, data []byte, name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.down {
		return "", ErrUnavailable
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])
	if _, ok := m.blobs[hash]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.blobs[hash] = stored
	}
	m.names[hash] = name
	return hash, nil
}

func (m *Memory) Get(_ context.Context, hash string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.down {
		return nil, ErrUnavailable
	}
	data, ok := m.blobs[hash]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Health(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.down {
		return ErrUnavailable
	}
	return nil
}

// Name reports the display name a blob was last uploaded under. Test-only
// visibility into the reconcile-on-create flow.
func (m *Memory) Name(hash string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.names[hash]
}
