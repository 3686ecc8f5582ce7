package auditcontext

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), " api_key ", "key_1")

	actorType, actorID, ok := ActorFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, ActorTypeAPIKey, actorType)
	assert.Equal(t, "key_1", actorID)

	_, _, ok = ActorFromContext(context.Background())
	assert.False(t, ok)
}

func TestRequestMetadata(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithIPAddress(ctx, "10.0.0.1")
	ctx = WithUserAgent(ctx, "mercadopago-webhook")
	ctx = WithPaymentID(ctx, "99")

	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "10.0.0.1", IPAddressFromContext(ctx))
	assert.Equal(t, "mercadopago-webhook", UserAgentFromContext(ctx))
	assert.Equal(t, "99", PaymentIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(nil))
}
