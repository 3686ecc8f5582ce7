package inter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
)

func TestParseWebhookBatchAndSingle(t *testing.T) {
	f := NewFactory()

	got, err := f.ParseWebhook(domain.Delivery{Body: []byte(`[{"codigoSolicitacao":"a1","situacao":"RECEBIDO"},{"codigoSolicitacao":"b2","situacao":"ATRASADO"}]`)})
	if err != nil {
		t.Fatalf("parse batch: %v", err)
	}
	if len(got) != 2 || got[1].ExternalID != "b2" {
		t.Fatalf("unexpected batch: %+v", got)
	}

	got, err = f.ParseWebhook(domain.Delivery{Body: []byte(`{"codigoSolicitacao":"c3","situacao":"CANCELADO"}`)})
	if err != nil || len(got) != 1 || got[0].ExternalID != "c3" {
		t.Fatalf("unexpected single: %+v %v", got, err)
	}
}

func TestGetChargeFetchesTokenOnce(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/oauth/v2/token":
			tokenCalls.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"tkn","expires_in":3600}`))
		case "/cobranca/v3/cobrancas/abc":
			if r.Header.Get("Authorization") != "Bearer tkn" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"cobranca":{"codigoSolicitacao":"abc","situacao":"RECEBIDO","valorNominal":"150.00","dataVencimento":"2024-04-10"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	adapter, err := NewFactory().NewAdapter(domain.Config{
		BaseURL: srv.URL,
		Secrets: credentialdomain.Secrets{"client_id": "id", "client_secret": "secret"},
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	for i := 0; i < 2; i++ {
		charge, err := adapter.GetCharge(context.Background(), "abc")
		if err != nil {
			t.Fatalf("get charge: %v", err)
		}
		if charge.Signal != paymentdomain.SignalApproved || charge.Amount != 15000 || charge.DueDate == nil {
			t.Fatalf("unexpected charge: %+v", charge)
		}
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("expected one token request, got %d", tokenCalls.Load())
	}
}
