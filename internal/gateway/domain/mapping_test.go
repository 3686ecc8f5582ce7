package domain

import (
	"testing"

	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/stretchr/testify/assert"
)

func TestMapStatus(t *testing.T) {
	cases := []struct {
		gateway Gateway
		raw     string
		want    paymentdomain.Signal
	}{
		{MercadoPago, "approved", paymentdomain.SignalApproved},
		{MercadoPago, "in_process", paymentdomain.SignalPending},
		{MercadoPago, "rejected", paymentdomain.SignalCancelled},
		{MercadoPago, "charged_back", paymentdomain.SignalRefunded},
		{Asaas, "RECEIVED_IN_CASH", paymentdomain.SignalApproved},
		{Asaas, "OVERDUE", paymentdomain.SignalOverdue},
		{Asaas, "DELETED", paymentdomain.SignalCancelled},
		{Inter, "MARCADO_RECEBIDO", paymentdomain.SignalApproved},
		{Inter, "EXPIRADO", paymentdomain.SignalCancelled},
		{Gerencianet, "settled", paymentdomain.SignalApproved},
		{Gerencianet, "unpaid", paymentdomain.SignalOverdue},
		{Gerencianet, "mystery", paymentdomain.SignalUnknown},
		{Gateway("stripe"), "paid", paymentdomain.SignalUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, MapStatus(tc.gateway, tc.raw), "%s/%s", tc.gateway, tc.raw)
	}
}

func TestMappedSignalsAreKnown(t *testing.T) {
	for gateway, table := range statusTables {
		for raw, signal := range table {
			assert.NotEqual(t, paymentdomain.SignalUnknown, signal, "%s/%s", gateway, raw)
		}
	}
}
