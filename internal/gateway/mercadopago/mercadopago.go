package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/rest"
)

const defaultBaseURL = "https://api.mercadopago.com"

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Gateway() domain.Gateway {
	return domain.MercadoPago
}

// ParseWebhook accepts the {type, data:{id}} body and the legacy ?topic=&id= query form.
func (f *Factory) ParseWebhook(delivery domain.Delivery) ([]domain.Notification, error) {
	var body webhookBody
	if len(delivery.Body) > 0 {
		if err := json.Unmarshal(delivery.Body, &body); err != nil {
			return nil, domain.ErrInvalidPayload
		}
	}

	eventType := strings.TrimSpace(body.Type)
	if eventType == "" {
		eventType = strings.TrimSpace(delivery.Query.Get("topic"))
	}
	if eventType != "" && eventType != "payment" {
		return nil, domain.ErrEventIgnored
	}

	id := body.Data.ID.String()
	if id == "" {
		id = strings.TrimSpace(delivery.Query.Get("data.id"))
	}
	if id == "" {
		id = strings.TrimSpace(delivery.Query.Get("id"))
	}
	if id == "" {
		return nil, domain.ErrInvalidPayload
	}
	return []domain.Notification{{ExternalID: id, Event: eventType}}, nil
}

func (f *Factory) NewAdapter(cfg domain.Config) (domain.Adapter, error) {
	token := cfg.Secrets.String("access_token")
	if token == "" {
		return nil, domain.ErrInvalidConfig
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client:        rest.NewClient(baseURL, cfg.HTTPClient),
		accessToken:   token,
		webhookSecret: cfg.Secrets.String("webhook_secret"),
	}, nil
}

type Adapter struct {
	client        *rest.Client
	accessToken   string
	webhookSecret string
}

// Verify checks the x-signature header when a webhook secret is configured.
func (a *Adapter) Verify(delivery domain.Delivery) error {
	if a.webhookSecret == "" {
		return nil
	}
	ts, v1 := parseSignature(delivery.Headers.Get("x-signature"))
	if ts == "" || v1 == "" {
		return domain.ErrInvalidSignature
	}

	dataID := strings.ToLower(strings.TrimSpace(delivery.Query.Get("data.id")))
	if dataID == "" {
		var body webhookBody
		_ = json.Unmarshal(delivery.Body, &body)
		dataID = strings.ToLower(body.Data.ID.String())
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, delivery.Headers.Get("x-request-id"), ts)

	mac := hmac.New(sha256.New, []byte(a.webhookSecret))
	_, _ = mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.CreateChargeRequest) (domain.Charge, error) {
	body := createPaymentRequest{
		TransactionAmount: domain.ToReais(req.Amount),
		Description:       req.Description,
		PaymentMethodID:   "pix",
		ExternalReference: req.PaymentID.String(),
		NotificationURL:   req.NotificationURL,
		Payer: payer{
			Email:     req.Customer.Email,
			FirstName: req.Customer.Name,
		},
	}
	if !req.DueDate.IsZero() {
		body.DateOfExpiration = endOfDay(req.DueDate).Format("2006-01-02T15:04:05.000-07:00")
	}
	if doc := domain.Digits(req.Customer.Document); doc != "" {
		kind := "CPF"
		if len(doc) > 11 {
			kind = "CNPJ"
		}
		body.Payer.Identification = &identification{Type: kind, Number: doc}
	}

	headers := a.headers()
	headers.Set("X-Idempotency-Key", req.PaymentID.String())

	var resp paymentResponse
	if err := a.client.Do(ctx, http.MethodPost, "/v1/payments", headers, body, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.MercadoPago, err)
	}
	return resp.charge(), nil
}

func (a *Adapter) GetCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	var resp paymentResponse
	if err := a.client.Do(ctx, http.MethodGet, "/v1/payments/"+externalID, a.headers(), nil, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.MercadoPago, err)
	}
	return resp.charge(), nil
}

func (a *Adapter) CancelCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	var resp paymentResponse
	body := map[string]string{"status": "cancelled"}
	if err := a.client.Do(ctx, http.MethodPut, "/v1/payments/"+externalID, a.headers(), body, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.MercadoPago, err)
	}
	return resp.charge(), nil
}

func (a *Adapter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+a.accessToken)
	return h
}

type webhookBody struct {
	Type string `json:"type"`
	Data struct {
		ID json.Number `json:"id"`
	} `json:"data"`
}

type identification struct {
	Type   string `json:"type"`
	Number string `json:"number"`
}

type payer struct {
	Email          string          `json:"email,omitempty"`
	FirstName      string          `json:"first_name,omitempty"`
	Identification *identification `json:"identification,omitempty"`
}

type createPaymentRequest struct {
	TransactionAmount float64 `json:"transaction_amount"`
	Description       string  `json:"description,omitempty"`
	PaymentMethodID   string  `json:"payment_method_id"`
	ExternalReference string  `json:"external_reference"`
	NotificationURL   string  `json:"notification_url,omitempty"`
	DateOfExpiration  string  `json:"date_of_expiration,omitempty"`
	Payer             payer   `json:"payer"`
}

type paymentResponse struct {
	ID                 json.Number `json:"id"`
	Status             string      `json:"status"`
	TransactionAmount  float64     `json:"transaction_amount"`
	PointOfInteraction struct {
		TransactionData struct {
			TicketURL string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func (r paymentResponse) charge() domain.Charge {
	return domain.Charge{
		ExternalID:  r.ID.String(),
		RawStatus:   r.Status,
		Signal:      domain.MapStatus(domain.MercadoPago, r.Status),
		Amount:      domain.FromReais(r.TransactionAmount),
		CheckoutURL: r.PointOfInteraction.TransactionData.TicketURL,
	}
}

func parseSignature(header string) (string, string) {
	var ts, v1 string
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch strings.TrimSpace(key) {
		case "ts":
			ts = strings.TrimSpace(value)
		case "v1":
			v1 = strings.TrimSpace(value)
		}
	}
	return ts, v1
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
