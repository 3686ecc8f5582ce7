package whatsapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeNumber(t *testing.T) {
	cases := map[string]string{
		"(11) 98765-4321":   "5511987654321",
		"+55 11 98765-4321": "5511987654321",
		"011 3456-7890":     "551134567890",
		"5548999990000":     "5548999990000",
	}
	for input, want := range cases {
		got, err := NormalizeNumber(input)
		if err != nil {
			t.Fatalf("NormalizeNumber(%q) error: %v", input, err)
		}
		if got != want {
			t.Fatalf("NormalizeNumber(%q) = %q, want %q", input, got, want)
		}
	}
	if _, err := NormalizeNumber("123"); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("expected ErrInvalidNumber, got %v", err)
	}
	// Arabic-Indic digits are dropped, leaving too few ASCII digits.
	if got, err := NormalizeNumber("11 ٩٨٧٦٥-٤٣٢١"); !errors.Is(err, ErrInvalidNumber) {
		t.Fatalf("NormalizeNumber with non-ASCII digits = %q, %v; want ErrInvalidNumber", got, err)
	}
}

func TestEvolutionSendText(t *testing.T) {
	var gotPath, gotKey string
	var gotBody sendTextRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"key":{"id":"MSG1"},"status":"PENDING"}`))
	}))
	defer server.Close()

	provider := NewEvolution(server.Client())
	receipt, err := provider.SendText(context.Background(), Instance{URL: server.URL, Name: "loja 1", APIKey: "secret"}, Message{
		Number: "(11) 98765-4321",
		Text:   "Olá",
	})
	if err != nil {
		t.Fatalf("SendText error: %v", err)
	}
	if gotPath != "/message/sendText/loja 1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "secret" {
		t.Fatalf("unexpected apikey header %q", gotKey)
	}
	if gotBody.Number != "5511987654321" || gotBody.Text != "Olá" {
		t.Fatalf("unexpected body %+v", gotBody)
	}
	if receipt.MessageID != "MSG1" || receipt.Status != "PENDING" {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
}

func TestEvolutionSendTextFailureKeepsBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"number not on whatsapp"}`))
	}))
	defer server.Close()

	provider := NewEvolution(server.Client())
	_, err := provider.SendText(context.Background(), Instance{URL: server.URL, Name: "i", APIKey: "k"}, Message{
		Number: "11987654321",
		Text:   "x",
	})
	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("expected SendError, got %v", err)
	}
	if sendErr.StatusCode != http.StatusBadRequest || sendErr.Body != `{"error":"number not on whatsapp"}` {
		t.Fatalf("unexpected error %+v", sendErr)
	}
}

func TestEvolutionRejectsIncompleteInstance(t *testing.T) {
	_, err := NewEvolution(nil).SendText(context.Background(), Instance{URL: "http://x"}, Message{Number: "11987654321"})
	if !errors.Is(err, ErrInvalidInstance) {
		t.Fatalf("expected ErrInvalidInstance, got %v", err)
	}
}
