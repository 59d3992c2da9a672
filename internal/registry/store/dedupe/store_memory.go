package dedupe

import (
	"context"
	"sync"
)

// MemoryGuard is the in-process Guard for tests and single-instance local
// runs. It does not survive restart and is not shared across instances;
// production uses RedisGuard.
type MemoryGuard struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewMemoryGuard creates an empty in-memory guard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{seen: make(map[string]struct{})}
}

func (g *MemoryGuard) Seen(_ context.Context, hash string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.seen[hash]
	return ok, nil
}

func (g *MemoryGuard) Mark(_ context.Context, hash string) error {
	if hash == "" {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seen[hash] = struct{}{}
	return nil
}
