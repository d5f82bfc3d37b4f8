package recordstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"dental-clinic/internal/eventbus"
	"dental-clinic/internal/platform/logger"
	"dental-clinic/internal/platform/metrics"
)

// SourceExternal marks changes made by another process sharing the store.
const SourceExternal = "external"

// Notifying publishes StoreChanged after every successful write or delete
// of the wrapped store, and counts writes per key family. Poll finds the
// writes of other processes sharing the same backend.
type Notifying struct {
	Store
	bus     *eventbus.Bus
	metrics *metrics.Metrics

	// hash of the last value this process wrote or observed, per key
	mu     sync.Mutex
	seen   map[string]uint64
	primed bool
}

func NewNotifying(inner Store, bus *eventbus.Bus, m *metrics.Metrics) *Notifying {
	return &Notifying{Store: inner, bus: bus, metrics: m, seen: map[string]uint64{}}
}

func (n *Notifying) Set(ctx context.Context, key string, value []byte) error {
	if err := n.Store.Set(ctx, key, value); err != nil {
		return err
	}
	n.mu.Lock()
	n.seen[key] = xxhash.Sum64(value)
	n.mu.Unlock()
	n.changed(ctx, key, "set")
	return nil
}

func (n *Notifying) Delete(ctx context.Context, key string) error {
	if err := n.Store.Delete(ctx, key); err != nil {
		return err
	}
	n.mu.Lock()
	delete(n.seen, key)
	n.mu.Unlock()
	n.changed(ctx, key, "delete")
	return nil
}

// Poll compares the backend with what this process last wrote or saw and
// publishes StoreChanged with SourceExternal for every key that differs.
// The first call only records the current state.
func (n *Notifying) Poll(ctx context.Context) ([]string, error) {
	keys, err := n.Store.Keys(ctx, "")
	if err != nil {
		return nil, err
	}
	current := make(map[string]uint64, len(keys))
	for _, k := range keys {
		raw, ok, err := n.Store.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			current[k] = xxhash.Sum64(raw)
		}
	}

	n.mu.Lock()
	var changed []string
	if n.primed {
		for k, h := range current {
			if old, ok := n.seen[k]; !ok || old != h {
				changed = append(changed, k)
			}
		}
		for k := range n.seen {
			if _, ok := current[k]; !ok {
				changed = append(changed, k)
			}
		}
	}
	n.seen, n.primed = current, true
	n.mu.Unlock()

	sort.Strings(changed)
	for _, k := range changed {
		n.bus.Publish(ctx, eventbus.StoreChanged{Key: k, Source: SourceExternal})
	}
	return changed, nil
}

// Watch polls every interval until ctx is done.
func (n *Notifying) Watch(ctx context.Context, every time.Duration, log logger.Logger) {
	if log == nil {
		log = logger.Discard()
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			changed, err := n.Poll(ctx)
			if err != nil {
				log.Warn("store poll failed", map[string]any{"error": err})
				continue
			}
			if len(changed) > 0 {
				log.Debug("external store changes", map[string]any{"keys": changed})
			}
		}
	}
}

func (n *Notifying) changed(ctx context.Context, key, op string) {
	if n.metrics != nil {
		n.metrics.StoreWrites.WithLabelValues(Family(key), op).Inc()
	}
	n.bus.Publish(ctx, eventbus.StoreChanged{Key: key, Source: SourceFrom(ctx)})
}

// LogMalformed is the MalformedHook every module installs: the value is
// logged at warn and counted, then read as absent.
func LogMalformed(log logger.Logger, m *metrics.Metrics) MalformedHook {
	if log == nil {
		log = logger.Discard()
	}
	return func(key string, err error) {
		if m != nil {
			m.StoreReadFailures.WithLabelValues(Family(key)).Inc()
		}
		log.Warn("malformed record ignored", map[string]any{"key": key, "error": err})
	}
}
