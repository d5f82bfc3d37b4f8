package blobcache

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetRevoke(t *testing.T) {
	c := New(time.Minute)
	data := []byte("%PDF-1.4")

	url := c.Put("application/pdf", data)
	assert.True(t, strings.HasPrefix(url, "blob:"))

	data[0] = 'X'
	got, ok := c.Get(url)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", got.ContentType)
	assert.Equal(t, "%PDF-1.4", string(got.Data))
	assert.Equal(t, 1, c.Len())

	c.Revoke(url)
	_, ok = c.Get(url)
	assert.False(t, ok)
}

func TestExpiry(t *testing.T) {
	c := New(20 * time.Millisecond)
	url := c.Put("text/plain", []byte("x"))

	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(url)
	assert.False(t, ok)
}

func TestGet_RejectsForeignURLs(t *testing.T) {
	c := New(0)
	_, ok := c.Get("https://example.com/a.pdf")
	assert.False(t, ok)
}
