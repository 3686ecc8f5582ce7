package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/vehicleguard/internal/config"
)

const keyNotificationCompany = "notify:company:%s"

// NotificationLimiter throttles outbound WhatsApp sends per company. Without Redis
// every send is allowed.
type NotificationLimiter struct {
	bucket *TokenBucket
	holder *config.NotificationConfigHolder
}

func NewNotificationLimiter(client *redis.Client, holder *config.NotificationConfigHolder) *NotificationLimiter {
	return &NotificationLimiter{
		bucket: NewTokenBucket(client),
		holder: holder,
	}
}

func (l *NotificationLimiter) Enabled() bool {
	if l == nil || l.bucket == nil {
		return false
	}
	limit := l.holder.Get().RateLimit
	return limit.PerSecond > 0 && limit.Burst > 0
}

func (l *NotificationLimiter) Allow(ctx context.Context, companyID snowflake.ID) (bool, time.Duration, error) {
	if !l.Enabled() {
		return true, 0, nil
	}
	limit := l.holder.Get().RateLimit
	res, err := l.bucket.Allow(ctx, fmt.Sprintf(keyNotificationCompany, companyID.String()), limit.PerSecond, limit.Burst)
	if err != nil {
		return false, 0, err
	}
	return res.Allowed, res.RetryAfter, nil
}
