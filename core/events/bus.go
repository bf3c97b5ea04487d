// Package events provides a simple event bus for publish/subscribe patterns.
// The link layer publishes state transitions here so monitoring can observe
// them without coupling to the connection manager.
package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// Event names published by the core.
const (
	LinkStateChanged = "link.state"
	LinkFailover     = "link.failover"
	ConnOpened       = "conn.opened"
	ConnClosed       = "conn.closed"
	SchemaReloaded   = "schema.reloaded"
)

// Event represents a published event.
type Event struct {
	// Name is the event name (e.g., "link.state", "conn.opened").
	Name string

	// Link is the source link, when the event is link-scoped.
	Link string

	// Data contains the event payload.
	Data map[string]any
}

// Handler is a function that processes an event.
type Handler func(ctx context.Context, event Event) error

// Bus is a simple publish/subscribe event bus.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	logger   zerolog.Logger
}

// NewBus creates a new event bus.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger,
	}
}

// Subscribe registers a handler for an event. Supports wildcard
// subscriptions:
//   - "link.state" - exact match
//   - "link.*" - all link events
//   - "*" - all events
func (b *Bus) Subscribe(event string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[event] = append(b.handlers[event], handler)
}

// Publish emits an event to all matching handlers. Handlers are called
// synchronously in registration order; handler errors are logged, not
// propagated.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug().
		Str("event", event.Name).
		Str("link", event.Link).
		Msg("event emitted")

	var matched []Handler
	if handlers, ok := b.handlers[event.Name]; ok {
		matched = append(matched, handlers...)
	}
	if prefix, ok := splitHead(event.Name); ok {
		if handlers, ok := b.handlers[prefix+".*"]; ok {
			matched = append(matched, handlers...)
		}
	}
	if handlers, ok := b.handlers["*"]; ok {
		matched = append(matched, handlers...)
	}

	for _, handler := range matched {
		if err := handler(ctx, event); err != nil {
			b.logger.Error().
				Err(err).
				Str("event", event.Name).
				Msg("event handler error")
		}
	}
}

// PublishAsync emits an event asynchronously.
func (b *Bus) PublishAsync(ctx context.Context, event Event) {
	go b.Publish(ctx, event)
}

// splitHead returns the part of name before the first dot.
func splitHead(name string) (string, bool) {
	for i, c := range name {
		if c == '.' {
			return name[:i], true
		}
	}
	return "", false
}
