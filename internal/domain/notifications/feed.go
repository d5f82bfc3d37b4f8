// Package notifications keeps the recent user-facing notifications published
// on the bus so a client can poll them.
package notifications

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"dental-clinic/internal/eventbus"
)

const DefaultTTL = 10 * time.Minute

type Item struct {
	ID          string            `json:"id"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Category    eventbus.Category `json:"category"`
	CreatedAt   time.Time         `json:"createdAt"`

	seq uint64
}

// Feed drops items after the TTL.
type Feed struct {
	c   *cache.Cache
	seq atomic.Uint64
	now func() time.Time
}

func NewFeed(ttl time.Duration) *Feed {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Feed{c: cache.New(ttl, ttl*2), now: time.Now}
}

// Start subscribes the feed to Notification events.
func (f *Feed) Start(bus *eventbus.Bus) error {
	_, err := eventbus.On(bus, "notifications.feed", func(_ context.Context, n eventbus.Notification) error {
		f.Add(n)
		return nil
	})
	return err
}

func (f *Feed) Add(n eventbus.Notification) Item {
	cat := n.Category
	if cat == "" {
		cat = eventbus.CategoryInfo
	}
	it := Item{
		ID:          uuid.NewString(),
		Title:       n.Title,
		Description: n.Description,
		Category:    cat,
		CreatedAt:   f.now().UTC(),
		seq:         f.seq.Add(1),
	}
	f.c.Set(it.ID, it, cache.DefaultExpiration)
	return it
}

// Recent returns up to limit items, newest first. limit <= 0 means all.
func (f *Feed) Recent(limit int) []Item {
	all := f.c.Items()
	out := make([]Item, 0, len(all))
	for _, v := range all {
		out = append(out, v.Object.(Item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq > out[j].seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (f *Feed) Dismiss(id string) bool {
	if _, ok := f.c.Get(id); !ok {
		return false
	}
	f.c.Delete(id)
	return true
}
