package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
)

func TestParseWebhook(t *testing.T) {
	f := NewFactory()

	got, err := f.ParseWebhook(domain.Delivery{Body: []byte(`{"type":"payment","data":{"id":"123456"}}`)})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].ExternalID != "123456" {
		t.Fatalf("unexpected notifications: %+v", got)
	}

	got, err = f.ParseWebhook(domain.Delivery{Body: []byte(`{"type":"payment","data":{"id":98765}}`)})
	if err != nil || got[0].ExternalID != "98765" {
		t.Fatalf("numeric id not parsed: %+v %v", got, err)
	}

	_, err = f.ParseWebhook(domain.Delivery{Body: []byte(`{"type":"plan","data":{"id":"1"}}`)})
	if !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ignored event, got %v", err)
	}

	got, err = f.ParseWebhook(domain.Delivery{Query: url.Values{"topic": {"payment"}, "id": {"42"}}})
	if err != nil || got[0].ExternalID != "42" {
		t.Fatalf("query form not parsed: %+v %v", got, err)
	}

	_, err = f.ParseWebhook(domain.Delivery{Body: []byte(`not json`)})
	if !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected invalid payload, got %v", err)
	}
}

func TestVerifySignature(t *testing.T) {
	secret := "mp-secret"
	adapter, err := NewFactory().NewAdapter(domain.Config{Secrets: credentialdomain.Secrets{
		"access_token":   "APP_USR-1",
		"webhook_secret": secret,
	}})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	manifest := "id:123;request-id:req-1;ts:1700000000;"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	headers := http.Header{}
	headers.Set("x-signature", "ts=1700000000,v1="+hex.EncodeToString(mac.Sum(nil)))
	headers.Set("x-request-id", "req-1")

	delivery := domain.Delivery{Body: []byte(`{"type":"payment","data":{"id":"123"}}`), Headers: headers, Query: url.Values{}}
	if err := adapter.Verify(delivery); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	headers.Set("x-signature", "ts=1700000000,v1=deadbeef")
	if err := adapter.Verify(delivery); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected invalid signature, got %v", err)
	}
}

func TestGetChargeMapsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/555" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("Authorization") != "Bearer APP_USR-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":555,"status":"approved","transaction_amount":129.9}`))
	}))
	defer srv.Close()

	adapter, err := NewFactory().NewAdapter(domain.Config{
		BaseURL: srv.URL,
		Secrets: credentialdomain.Secrets{"access_token": "APP_USR-1"},
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	charge, err := adapter.GetCharge(context.Background(), "555")
	if err != nil {
		t.Fatalf("get charge: %v", err)
	}
	if charge.Signal != paymentdomain.SignalApproved || charge.Amount != 12990 || charge.ExternalID != "555" {
		t.Fatalf("unexpected charge: %+v", charge)
	}

	_, err = adapter.GetCharge(context.Background(), "404")
	if !errors.Is(err, domain.ErrChargeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestNewAdapterRequiresToken(t *testing.T) {
	_, err := NewFactory().NewAdapter(domain.Config{Secrets: credentialdomain.Secrets{}})
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Fatalf("expected invalid config, got %v", err)
	}
}
