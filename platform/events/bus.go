package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"crm_pipeline_backend/platform/logger"
)

// InMemoryBus is a process-local Bus. Handlers for one event name run in
// subscription order for PublishSync and concurrently for Publish.
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	log      *logger.Logger
	inflight sync.WaitGroup
}

// NewInMemoryBus creates an empty bus.
func NewInMemoryBus(log *logger.Logger) *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[string][]Handler),
		log:      log,
	}
}

// Subscribe registers a handler for eventName.
func (b *InMemoryBus) Subscribe(eventName string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

func (b *InMemoryBus) handlersFor(eventName string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	hs := b.handlers[eventName]
	out := make([]Handler, len(hs))
	copy(out, hs)
	return out
}

// Publish runs every handler in its own goroutine and returns immediately.
// Handler errors and panics are logged.
func (b *InMemoryBus) Publish(ctx context.Context, event Event) {
	ctx = context.WithoutCancel(ctx)
	for _, h := range b.handlersFor(event.EventName()) {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			if err := b.invoke(ctx, h, event); err != nil {
				b.logFailure(event.EventName(), err)
			}
		}(h)
	}
}

// PublishSync runs handlers one after another and returns the joined errors.
// A failing handler does not stop the ones after it.
func (b *InMemoryBus) PublishSync(ctx context.Context, event Event) error {
	var errs []error
	for _, h := range b.handlersFor(event.EventName()) {
		if err := b.invoke(ctx, h, event); err != nil {
			b.logFailure(event.EventName(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until all handlers started by Publish have returned.
func (b *InMemoryBus) Wait() {
	b.inflight.Wait()
}

func (b *InMemoryBus) invoke(ctx context.Context, h Handler, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h.Handle(ctx, event)
}

func (b *InMemoryBus) logFailure(eventName string, err error) {
	if b.log != nil {
		b.log.EventHandlerFailed(eventName, err)
	}
}

var _ Bus = (*InMemoryBus)(nil)
