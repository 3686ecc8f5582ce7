package adapters

import (
	"testing"

	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/mercadopago"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryLookup(t *testing.T) {
	registry := NewRegistry(mercadopago.NewFactory(), nil)

	factory, err := registry.Factory(" MercadoPago ")
	require.NoError(t, err)
	assert.Equal(t, domain.MercadoPago, factory.Gateway())

	_, err = registry.Factory("asaas")
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)

	_, err = registry.NewAdapter("mercadopago", domain.Config{Secrets: credentialdomain.Secrets{"access_token": "x"}})
	assert.NoError(t, err)

	var empty *Registry
	_, err = empty.Factory("mercadopago")
	assert.ErrorIs(t, err, domain.ErrUnknownGateway)
}
