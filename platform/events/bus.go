package events

import (
	"context"
	"sync"

	"fleetcrm_backend/platform/logger"
)

// InMemoryBus is a process-local Bus implementation. Handlers registered for
// an event name receive every published instance of that event. Publish runs
// handlers on separate goroutines; PublishSync runs them inline and returns
// the first error encountered.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
}

// NewInMemoryBus creates a new in-memory event bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for the given event name.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish dispatches the event to all handlers asynchronously. Handler
// failures are logged, not propagated; publishing is fire-and-forget.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		handler := h
		go func() {
			if err := handler.Handle(context.WithoutCancel(ctx), event); err != nil && b.log != nil {
				b.log.Error("event handler failed", "event", event.EventName(), "error", err)
			}
		}()
	}
}

// PublishSync dispatches the event to all handlers inline.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.EventName()]
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
