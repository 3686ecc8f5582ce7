package paymentevents

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSubscriberWithoutRedisIsDisabled(t *testing.T) {
	sub := NewSubscriber(SubscriberParams{Log: zaptest.NewLogger(t), Config: config.Config{}, Hub: NewHub()})
	assert.False(t, sub.Enabled())
	assert.Equal(t, "vehicleguard:payments:*", sub.pattern)

	sub.Start()
	require.NoError(t, sub.Stop(context.Background()))
}

func TestSubscriberDispatchFeedsHub(t *testing.T) {
	hub := NewHub()
	sub := NewSubscriber(SubscriberParams{Log: zaptest.NewLogger(t), Config: config.Config{}, Hub: hub})
	live, _, err := hub.Subscribe(snowflake.ID(42))
	require.NoError(t, err)
	defer live.Close()

	sub.dispatch("vehicleguard:payments:42", `{"id":"1","type":"payment.created","payment_id":"7"}`)
	sub.dispatch("vehicleguard:payments:42", `not json`)
	sub.dispatch("vehicleguard:payments:abc", `{"id":"2"}`)

	require.Len(t, live.Events(), 1)
	msg := <-live.Events()
	assert.Equal(t, domain.EventPaymentCreated, msg.Type)
	assert.Equal(t, "7", msg.PaymentID)
}

func TestDefaultBackOffGrows(t *testing.T) {
	policy := defaultBackOff()
	first := policy.NextBackOff()
	var last time.Duration
	for i := 0; i < 20; i++ {
		last = policy.NextBackOff()
	}
	assert.Greater(t, first, time.Duration(0))
	assert.LessOrEqual(t, last, 45*time.Second)
	assert.Greater(t, last, first)
}
