package paymentevents

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubIsolatesCompanies(t *testing.T) {
	hub := NewHub()
	first, _, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	defer first.Close()
	second, _, err := hub.Subscribe(snowflake.ID(2))
	require.NoError(t, err)
	defer second.Close()

	hub.Publish(snowflake.ID(1), domain.Message{ID: "a", Type: domain.EventPaymentCreated})

	select {
	case msg := <-first.Events():
		assert.Equal(t, "a", msg.ID)
	default:
		t.Fatal("expected an event for company 1")
	}
	select {
	case msg := <-second.Events():
		t.Fatalf("company 2 received %+v", msg)
	default:
	}
}

func TestHubReplaysBacklog(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	hub.Publish(snowflake.ID(1), domain.Message{ID: "a"})
	hub.Publish(snowflake.ID(1), domain.Message{ID: "b"})

	late, backlog, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	defer late.Close()
	require.Len(t, backlog, 2)
	assert.Equal(t, "b", backlog[1].ID)
	sub.Close()
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	defer sub.Close()

	for i := 0; i < DefaultSubscriberBuffer+5; i++ {
		hub.Publish(snowflake.ID(1), domain.Message{ID: "x"})
	}
	assert.Len(t, sub.Events(), DefaultSubscriberBuffer)
}

func TestNilHub(t *testing.T) {
	var hub *Hub
	hub.Publish(snowflake.ID(1), domain.Message{})
	_, _, err := hub.Subscribe(snowflake.ID(1))
	assert.ErrorIs(t, err, ErrHubUnavailable)

	_, _, err = NewHub().Subscribe(0)
	assert.ErrorIs(t, err, domain.ErrInvalidCompany)
}

func TestHubForgetsBacklogWhenLastStreamCloses(t *testing.T) {
	hub := NewHub()
	sub, _, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	hub.Publish(snowflake.ID(1), domain.Message{ID: "a"})
	sub.Close()
	sub.Close()

	hub.Publish(snowflake.ID(1), domain.Message{ID: "b"})
	again, backlog, err := hub.Subscribe(snowflake.ID(1))
	require.NoError(t, err)
	defer again.Close()
	assert.Empty(t, backlog)
}
