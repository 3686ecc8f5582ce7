package paymentevents

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/repository"
	"github.com/smallbiznis/vehicleguard/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/datatypes"
)

type recordingHandler struct {
	seen []string
	err  error
}

func (h *recordingHandler) HandlePaymentEvent(_ context.Context, event domain.Event) error {
	h.seen = append(h.seen, event.EventType)
	return h.err
}

func TestRelayPublishesToHubWithoutRedis(t *testing.T) {
	db := testutil.NewDB(t)
	node := testutil.NewNode(t)
	repo := repository.Provide()
	hub := NewHub()
	ctx := context.Background()
	companyID := snowflake.ID(9)

	for _, eventType := range []string{domain.EventPaymentCreated, domain.EventPaymentStatusChanged} {
		require.NoError(t, repo.Insert(ctx, db, &domain.Event{
			ID:        node.Generate(),
			CompanyID: companyID,
			PaymentID: snowflake.ID(100),
			EventType: eventType,
			Payload:   datatypes.JSONMap{"status": "pending"},
			CreatedAt: time.Now().UTC(),
		}))
	}

	sub, _, err := hub.Subscribe(companyID)
	require.NoError(t, err)
	defer sub.Close()

	failing := &recordingHandler{err: errors.New("boom")}
	relay := NewRelay(RelayParams{
		DB:       db,
		Log:      zaptest.NewLogger(t),
		Clock:    clock.NewFakeClock(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)),
		Config:   config.Config{},
		Repo:     repo,
		Hub:      hub,
		Handlers: []Handler{failing, nil},
	})

	n, err := relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{domain.EventPaymentCreated, domain.EventPaymentStatusChanged}, failing.seen)
	require.Len(t, sub.Events(), 2)
	first := <-sub.Events()
	assert.Equal(t, domain.EventPaymentCreated, first.Type)
	assert.Equal(t, "100", first.PaymentID)

	n, err = relay.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRelayStartStop(t *testing.T) {
	relay := NewRelay(RelayParams{
		DB:     testutil.NewDB(t),
		Log:    zaptest.NewLogger(t),
		Config: config.Config{Events: config.EventsConfig{RelayInterval: 10 * time.Millisecond}},
		Repo:   repository.Provide(),
		Hub:    NewHub(),
	})
	relay.Start()
	relay.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, relay.Stop(ctx))
	require.NoError(t, relay.Stop(ctx))
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "vehicleguard:payments:42", Channel(DefaultChannelPrefix, snowflake.ID(42)))
}
