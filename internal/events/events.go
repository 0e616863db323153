// Package events delivers domain events to NATS and to in-process handlers.
package events

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/dukerupert/verdandi/internal/domain"
)

// Handler reacts to one published event.
type Handler func(ctx context.Context, event domain.Event) error

// Dispatcher calls in-process handlers synchronously, in subscription order.
// A handler subscribed to "*" sees every event.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]Handler)}
}

var _ domain.EventPublisher = (*Dispatcher)(nil)

func (d *Dispatcher) Subscribe(eventName string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventName] = append(d.handlers[eventName], h)
}

// Publish runs every matching handler even when an earlier one fails and
// returns the joined errors.
func (d *Dispatcher) Publish(ctx context.Context, event domain.Event) error {
	d.mu.RLock()
	hs := append(append([]Handler(nil), d.handlers[event.EventName()]...), d.handlers["*"]...)
	d.mu.RUnlock()

	var errs []error
	for _, h := range hs {
		if err := h(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Multi publishes to every publisher in order.
type Multi []domain.EventPublisher

var _ domain.EventPublisher = Multi(nil)

func (m Multi) Publish(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogEvents returns a handler that writes every event to logger at debug level.
func LogEvents(logger *slog.Logger) Handler {
	return func(ctx context.Context, event domain.Event) error {
		logger.DebugContext(ctx, "event published", "event", event.EventName())
		return nil
	}
}
