// Package publisher decouples mutation handlers from the audit sink.
// Synchronous by default; an async buffer can absorb sink latency, with a
// full buffer dropping events rather than blocking the request path.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"bvcregistry/pkg/platform/audit"
)

// Publisher forwards events to a sink.
type Publisher struct {
	sink   audit.Sink
	logger *slog.Logger

	buffer chan audit.Event
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithAsyncBuffer makes Emit non-blocking behind a buffered channel of the
// given size. Close drains the buffer before returning.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.buffer = make(chan audit.Event, size)
	}
}

// New creates a Publisher over the given sink.
func New(sink audit.Sink, logger *slog.Logger, opts ...Option) *Publisher {
	p := &Publisher{sink: sink, logger: logger}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records one event, stamping ID and timestamp. Audit failure never
// fails the mutation that triggered it; it is logged and dropped. Emit after
// Close drops the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) {
	event.ID = uuid.NewString()
	event.At = time.Now().UTC()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.logger.Warn("audit publisher closed, dropping event", "action", event.Action, "bvc_id", event.BVCID)
		return
	}
	if p.buffer != nil {
		select {
		case p.buffer <- event:
		default:
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action, "bvc_id", event.BVCID)
		}
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if err := p.sink.Record(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit record failed", "action", event.Action, "error", err)
	}
}

// Close drains any buffered events and closes the sink.
func (p *Publisher) Close() {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		if p.buffer != nil {
			close(p.buffer)
		}
		p.mu.Unlock()
		if p.buffer != nil {
			p.wg.Wait()
		}
		if err := p.sink.Close(); err != nil {
			p.logger.Error("audit sink close failed", "error", err)
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.sink.Record(context.Background(), event); err != nil {
			p.logger.Error("audit record failed", "action", event.Action, "error", err)
		}
	}
}
