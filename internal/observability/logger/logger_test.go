package logger

import (
	"context"
	"testing"

	obscontext "github.com/smallbiznis/vehicleguard/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-7")
	ctx = obscontext.WithCompanyID(ctx, "1001")
	ctx = obscontext.WithActor(ctx, "api_key", "vg_abc")

	WithContext(ctx, base).Info("payment.webhook.received")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-7", fields["request_id"])
	assert.Equal(t, "1001", fields["company_id"])
	assert.Equal(t, "api_key", fields["actor_type"])
	assert.NotContains(t, fields, "trace_id")
}

func TestWithContextWithoutIdentifiers(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("scheduler.tick")

	require.Equal(t, 1, logs.Len())
	assert.Empty(t, logs.All()[0].ContextMap())
}

func TestNewRejectsInvalidLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestOperationFromSQL(t *testing.T) {
	assert.Equal(t, "INSERT", operationFromSQL("INSERT INTO payment_transactions (id) VALUES (?)"))
	assert.Equal(t, "SELECT", operationFromSQL("WITH due AS (SELECT 1) SELECT * FROM due"))
	assert.Equal(t, "UNKNOWN", operationFromSQL(""))
}
