// Package blobcache holds uploaded file content in process memory behind
// "blob:<uuid>" URLs. Content expires after a TTL and is lost on restart;
// only metadata is persisted.
package blobcache

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

const scheme = "blob:"

type Blob struct {
	ContentType string
	Data        []byte
}

type Cache struct {
	c *cache.Cache
}

// New creates a cache whose entries live for ttl. ttl <= 0 keeps entries
// until they are revoked.
func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		return &Cache{c: cache.New(cache.NoExpiration, 0)}
	}
	return &Cache{c: cache.New(ttl, ttl*2)}
}

// Put stores a copy of data and returns its URL.
func (b *Cache) Put(contentType string, data []byte) string {
	url := scheme + uuid.NewString()
	b.c.Set(url, Blob{ContentType: contentType, Data: append([]byte(nil), data...)}, cache.DefaultExpiration)
	return url
}

func (b *Cache) Get(url string) (Blob, bool) {
	if !strings.HasPrefix(url, scheme) {
		return Blob{}, false
	}
	v, ok := b.c.Get(url)
	if !ok {
		return Blob{}, false
	}
	blob := v.(Blob)
	return Blob{ContentType: blob.ContentType, Data: append([]byte(nil), blob.Data...)}, true
}

func (b *Cache) Revoke(url string) {
	b.c.Delete(url)
}

func (b *Cache) Len() int {
	return b.c.ItemCount()
}
