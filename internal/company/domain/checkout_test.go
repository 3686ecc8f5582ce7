package domain

import (
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func strPtr(v string) *string { return &v }

func TestCheckoutBaseURL(t *testing.T) {
	cases := []struct {
		name    string
		company *Company
		want    string
	}{
		{name: "no company", company: nil, want: "https://app.vehicleguard.com.br"},
		{name: "no domain", company: &Company{}, want: "https://app.vehicleguard.com.br"},
		{name: "blank domain", company: &Company{CustomDomain: strPtr("  /  ")}, want: "https://app.vehicleguard.com.br"},
		{name: "bare host", company: &Company{CustomDomain: strPtr("pay.rastreio.com")}, want: "https://pay.rastreio.com"},
		{name: "trailing slashes", company: &Company{CustomDomain: strPtr("pay.rastreio.com//")}, want: "https://pay.rastreio.com"},
		{name: "scheme and slashes", company: &Company{CustomDomain: strPtr("https://pay.rastreio.com/")}, want: "https://pay.rastreio.com"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, CheckoutBaseURL(tc.company, "https://app.vehicleguard.com.br/"))
		})
	}
}

func TestCheckoutURLNeverDoubleSlashes(t *testing.T) {
	got := CheckoutURL("https://pay.rastreio.com/", snowflake.ID(77))
	assert.Equal(t, "https://pay.rastreio.com/checkout/77", got)
}
