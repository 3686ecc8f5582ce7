package cache

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestTTLCacheExpires(t *testing.T) {
	c := NewTTLCache[string, int]().(*ttlCache[string, int])
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	c.Set("ignored", 2, 0)

	value, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, value)
	_, ok = c.Get("ignored")
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestCheckoutBaseCacheInvalidate(t *testing.T) {
	c := NewCheckoutBaseCache()
	c.Set(snowflake.ID(7), "https://pay.example.com")

	base, ok := c.Get(snowflake.ID(7))
	assert.True(t, ok)
	assert.Equal(t, "https://pay.example.com", base)

	c.Invalidate(snowflake.ID(7))
	_, ok = c.Get(snowflake.ID(7))
	assert.False(t, ok)

	var nilCache *CheckoutBaseCache
	_, ok = nilCache.Get(snowflake.ID(7))
	assert.False(t, ok)
}
