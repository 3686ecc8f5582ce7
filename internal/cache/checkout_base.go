package cache

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const defaultCheckoutBaseTTL = 5 * time.Minute

// CheckoutBaseCache keeps the resolved checkout host per company so charge generation
// does not reload the company row for every payment in a backfill batch.
type CheckoutBaseCache struct {
	items Cache[snowflake.ID, string]
	ttl   time.Duration
}

func NewCheckoutBaseCache() *CheckoutBaseCache {
	return &CheckoutBaseCache{
		items: NewTTLCache[snowflake.ID, string](),
		ttl:   defaultCheckoutBaseTTL,
	}
}

func (c *CheckoutBaseCache) Get(companyID snowflake.ID) (string, bool) {
	if c == nil || companyID == 0 {
		return "", false
	}
	return c.items.Get(companyID)
}

func (c *CheckoutBaseCache) Set(companyID snowflake.ID, base string) {
	if c == nil || companyID == 0 || base == "" {
		return
	}
	c.items.Set(companyID, base, c.ttl)
}

// Invalidate drops the entry after a company changes its custom domain.
func (c *CheckoutBaseCache) Invalidate(companyID snowflake.ID) {
	if c == nil {
		return
	}
	c.items.Delete(companyID)
}
