package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChargeGenerationKey(t *testing.T) {
	assert.Equal(t, "charge-gen:1:2:2024-02", ChargeGenerationKey(snowflake.ID(1), snowflake.ID(2), "2024-02"))
}

func TestNilLockerIsDisabled(t *testing.T) {
	locker := NewLocker(nil)
	assert.False(t, locker.Enabled())

	lease, err := locker.TryLock(context.Background(), "k", time.Second)
	assert.ErrorIs(t, err, ErrLockNotConfigured)
	assert.Nil(t, lease)
	assert.NoError(t, lease.Release(context.Background()))
	assert.Equal(t, "scheduler:lease:mark_overdue", JobLeaseKey("mark_overdue"))
}

func TestNotificationLimiterWithoutRedisAllows(t *testing.T) {
	limiter := NewNotificationLimiter(nil, config.NewStaticNotificationConfigHolder(config.DefaultNotificationConfig()))
	assert.False(t, limiter.Enabled())

	allowed, wait, err := limiter.Allow(context.Background(), snowflake.ID(1))
	require.NoError(t, err)
	assert.True(t, allowed)
	assert.Zero(t, wait)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "notify:company:1", 1, 1)
	assert.ErrorIs(t, err, errLimiterNotConfigured)

	bucket = &TokenBucket{client: redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})}
	_, err = bucket.Allow(context.Background(), "notify:company:1", 0, 5)
	assert.ErrorIs(t, err, errInvalidBucket)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(1, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, time.Second, bucketTTL(0, 1))
}
