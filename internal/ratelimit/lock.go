package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// compare-and-delete so an expired lease never frees a successor's key
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

var ErrLockNotConfigured = errors.New("lock client not configured")

// Locker hands out short Redis leases for work that must not run twice at once:
// next-charge creation per contract period and scheduler jobs across replicas.
type Locker struct {
	client *redis.Client
}

// Lease is a held lock. The zero-value and nil Lease release as no-ops.
type Lease struct {
	Key   string
	token string
	l     *Locker
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{client: client}
}

func (l *Locker) Enabled() bool {
	return l != nil && l.client != nil
}

// TryLock returns a nil Lease without error when someone else holds key.
func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (*Lease, error) {
	switch {
	case !l.Enabled():
		return nil, ErrLockNotConfigured
	case key == "":
		return nil, errors.New("lock key is empty")
	case ttl <= 0:
		return nil, fmt.Errorf("lock %s: ttl must be positive", key)
	}

	token := uuid.NewString()
	acquired, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !acquired {
		return nil, err
	}
	return &Lease{Key: key, token: token, l: l}, nil
}

// Release frees the lease if it is still ours.
func (le *Lease) Release(ctx context.Context) error {
	if le == nil || le.l == nil || le.token == "" {
		return nil
	}
	return releaseLease.Run(ctx, le.l.client, []string{le.Key}, le.token).Err()
}

// ChargeGenerationKey names the lease that serializes next-charge creation for one
// contract period.
func ChargeGenerationKey(companyID, contractID snowflake.ID, period string) string {
	return fmt.Sprintf("charge-gen:%d:%d:%s", companyID, contractID, period)
}

// JobLeaseKey names the lease a scheduler replica takes before running job.
func JobLeaseKey(job string) string {
	return "scheduler:lease:" + job
}
