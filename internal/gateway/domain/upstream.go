package domain

import (
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/smallbiznis/vehicleguard/internal/gateway/rest"
)

// Upstream converts a transport status error into the gateway's error vocabulary.
func Upstream(gateway Gateway, err error) error {
	var statusErr *rest.StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	if statusErr.StatusCode == http.StatusNotFound {
		return ErrChargeNotFound
	}
	return &UpstreamError{Gateway: gateway, StatusCode: statusErr.StatusCode, Body: statusErr.Body}
}

// ToReais converts centavos to the decimal amount most gateway APIs expect.
func ToReais(centavos int64) float64 {
	return float64(centavos) / 100
}

func FromReais(value float64) int64 {
	return int64(math.Round(value * 100))
}

// Digits strips everything but 0-9, used for CPF/CNPJ and phone numbers.
func Digits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
