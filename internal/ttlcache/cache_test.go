package ttlcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetMiss(t *testing.T) {
	c := New()
	_, ok := c.Get("nope")
	assert.False(t, ok)
}

func TestPutGet(t *testing.T) {
	c := New()
	c.Put("k", "v", time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestExpiry(t *testing.T) {
	c := New()
	c.Put("k", "v", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, ok := c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestOverwrite(t *testing.T) {
	c := New()
	c.Put("k", "v1", time.Minute)
	c.Put("k", "v2", time.Minute)
	v, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v2", v)
}
