package domain

import (
	"strings"

	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
)

// statusTables translate each gateway's status vocabulary into a Signal.
// Keys are stored upper-cased.
var statusTables = map[Gateway]map[string]paymentdomain.Signal{
	MercadoPago: {
		"APPROVED":     paymentdomain.SignalApproved,
		"AUTHORIZED":   paymentdomain.SignalApproved,
		"PENDING":      paymentdomain.SignalPending,
		"IN_PROCESS":   paymentdomain.SignalPending,
		"IN_MEDIATION": paymentdomain.SignalPending,
		"REJECTED":     paymentdomain.SignalCancelled,
		"CANCELLED":    paymentdomain.SignalCancelled,
		"REFUNDED":     paymentdomain.SignalRefunded,
		"CHARGED_BACK": paymentdomain.SignalRefunded,
	},
	Asaas: {
		"RECEIVED":               paymentdomain.SignalApproved,
		"CONFIRMED":              paymentdomain.SignalApproved,
		"RECEIVED_IN_CASH":       paymentdomain.SignalApproved,
		"PENDING":                paymentdomain.SignalPending,
		"AWAITING_RISK_ANALYSIS": paymentdomain.SignalPending,
		"OVERDUE":                paymentdomain.SignalOverdue,
		"REFUNDED":               paymentdomain.SignalRefunded,
		"REFUND_REQUESTED":       paymentdomain.SignalRefunded,
		"CHARGEBACK_REQUESTED":   paymentdomain.SignalRefunded,
		"DELETED":                paymentdomain.SignalCancelled,
		"CANCELLED":              paymentdomain.SignalCancelled,
	},
	Inter: {
		"RECEBIDO":         paymentdomain.SignalApproved,
		"MARCADO_RECEBIDO": paymentdomain.SignalApproved,
		"A_RECEBER":        paymentdomain.SignalPending,
		"EM_PROCESSAMENTO": paymentdomain.SignalPending,
		"ATRASADO":         paymentdomain.SignalOverdue,
		"CANCELADO":        paymentdomain.SignalCancelled,
		"EXPIRADO":         paymentdomain.SignalCancelled,
		"FALHA_EMISSAO":    paymentdomain.SignalCancelled,
	},
	Gerencianet: {
		"PAID":      paymentdomain.SignalApproved,
		"SETTLED":   paymentdomain.SignalApproved,
		"NEW":       paymentdomain.SignalPending,
		"WAITING":   paymentdomain.SignalPending,
		"LINK":      paymentdomain.SignalPending,
		"CONTESTED": paymentdomain.SignalPending,
		"UNPAID":    paymentdomain.SignalOverdue,
		"CANCELED":  paymentdomain.SignalCancelled,
		"EXPIRED":   paymentdomain.SignalCancelled,
		"REFUNDED":  paymentdomain.SignalRefunded,
	},
}

// MapStatus returns SignalUnknown for unknown gateways and unmapped statuses.
func MapStatus(gateway Gateway, raw string) paymentdomain.Signal {
	table, ok := statusTables[gateway]
	if !ok {
		return paymentdomain.SignalUnknown
	}
	signal, ok := table[strings.ToUpper(strings.TrimSpace(raw))]
	if !ok {
		return paymentdomain.SignalUnknown
	}
	return signal
}
