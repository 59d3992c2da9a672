// Package memory is the in-process audit sink for tests and deployments
// without a broker.
package memory

import (
	"context"
	"sync"

	"bvcregistry/pkg/platform/audit"
)

// Sink keeps recorded events in order of arrival.
type Sink struct {
	mu     sync.RWMutex
	events []audit.Event
}

// New creates an empty in-memory sink.
func New() *Sink {
	return &Sink{}
}

func (s *Sink) Record(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *Sink) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (s *Sink) Events() []audit.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events))
	copy(out, s.events)
	return out
}
