// Package eventbus is the in-process publish/subscribe channel modules use
// to tell each other that shared records changed.
//
// Delivery is synchronous: Publish runs every handler for the event kind on
// the caller's goroutine, in subscription order, before returning. Within one
// process this keeps notifications in the same order as the writes that
// caused them. A failing handler is logged and counted; it never stops
// delivery to the remaining subscribers and never fails the publisher.
package eventbus

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/metrics"
)

type Handler func(ctx context.Context, e Event) error

type subscription struct {
	id   uint64
	name string
	fn   Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[Kind][]subscription
	nextID uint64

	log     logger.Logger
	metrics *metrics.Metrics
}

// New creates a bus. m may be nil.
func New(log logger.Logger, m *metrics.Metrics) *Bus {
	if log == nil {
		log = logger.Discard()
	}
	return &Bus{
		subs:    make(map[Kind][]subscription),
		log:     log.With(map[string]any{"module": "eventbus"}),
		metrics: m,
	}
}

// Subscribe registers fn for kind. Names must be unique per kind.
// The returned func removes the subscription.
func (b *Bus) Subscribe(kind Kind, name string, fn Handler) (func(), error) {
	name = strings.TrimSpace(name)
	if kind == "" || name == "" || fn == nil {
		return nil, fmt.Errorf("eventbus: kind, name and handler are required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.subs[kind] {
		if s.name == name {
			return nil, fmt.Errorf("eventbus: subscriber %q already registered for %s", name, kind)
		}
	}

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscription{id: id, name: name, fn: fn})

	b.log.Debug("subscriber registered", map[string]any{"kind": string(kind), "subscriber": name})

	return func() { b.unsubscribe(kind, id) }, nil
}

// On is Subscribe with a typed handler.
func On[E Event](b *Bus, name string, fn func(ctx context.Context, e E) error) (func(), error) {
	var zero E
	return b.Subscribe(zero.Kind(), name, func(ctx context.Context, e Event) error {
		ev, ok := e.(E)
		if !ok {
			return fmt.Errorf("eventbus: unexpected payload %T for %s", e, zero.Kind())
		}
		return fn(ctx, ev)
	})
}

func (b *Bus) unsubscribe(kind Kind, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.subs[kind]
	for i, s := range list {
		if s.id == id {
			b.subs[kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every current subscriber of its kind. Handlers may
// publish further events.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil || e == nil {
		return
	}
	kind := e.Kind()

	b.mu.RLock()
	list := make([]subscription, len(b.subs[kind]))
	copy(list, b.subs[kind])
	b.mu.RUnlock()

	if b.metrics != nil {
		b.metrics.EventsPublished.WithLabelValues(string(kind)).Inc()
	}

	for _, s := range list {
		if err := b.deliver(ctx, s, e); err != nil {
			if b.metrics != nil {
				b.metrics.EventHandlerErrors.WithLabelValues(string(kind)).Inc()
			}
			b.log.Warn("event handler failed", map[string]any{
				"kind":       string(kind),
				"subscriber": s.name,
				"error":      err,
			})
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.fn(ctx, e)
}

// Subscribers returns the subscriber names for kind, in delivery order.
func (b *Bus) Subscribers(kind Kind) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.subs[kind]))
	for _, s := range b.subs[kind] {
		out = append(out, s.name)
	}
	return out
}
