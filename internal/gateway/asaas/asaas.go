package asaas

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/rest"
)

const (
	defaultBaseURL = "https://api.asaas.com/v3"
	sandboxBaseURL = "https://sandbox.asaas.com/api/v3"
	dateLayout     = "2006-01-02"
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Gateway() domain.Gateway {
	return domain.Asaas
}

func (f *Factory) ParseWebhook(delivery domain.Delivery) ([]domain.Notification, error) {
	var body struct {
		Event   string `json:"event"`
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}
	if err := json.Unmarshal(delivery.Body, &body); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if !strings.HasPrefix(body.Event, "PAYMENT_") {
		return nil, domain.ErrEventIgnored
	}
	id := strings.TrimSpace(body.Payment.ID)
	if id == "" {
		return nil, domain.ErrInvalidPayload
	}
	return []domain.Notification{{ExternalID: id, Event: body.Event}}, nil
}

func (f *Factory) NewAdapter(cfg domain.Config) (domain.Adapter, error) {
	apiKey := cfg.Secrets.String("api_key")
	if apiKey == "" {
		return nil, domain.ErrInvalidConfig
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
		if strings.EqualFold(cfg.Secrets.String("environment"), "sandbox") {
			baseURL = sandboxBaseURL
		}
	}
	return &Adapter{
		client:       rest.NewClient(baseURL, cfg.HTTPClient),
		apiKey:       apiKey,
		webhookToken: cfg.Secrets.String("webhook_token"),
	}, nil
}

type Adapter struct {
	client       *rest.Client
	apiKey       string
	webhookToken string
}

// Verify compares the asaas-access-token header with the configured webhook token.
func (a *Adapter) Verify(delivery domain.Delivery) error {
	if a.webhookToken == "" {
		return nil
	}
	got := delivery.Headers.Get("asaas-access-token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.webhookToken)) != 1 {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.CreateChargeRequest) (domain.Charge, error) {
	customerID, err := a.ensureCustomer(ctx, req.Customer)
	if err != nil {
		return domain.Charge{}, err
	}

	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now().UTC()
	}
	body := map[string]any{
		"customer":          customerID,
		"billingType":       "UNDEFINED",
		"value":             domain.ToReais(req.Amount),
		"dueDate":           dueDate.Format(dateLayout),
		"description":       req.Description,
		"externalReference": req.PaymentID.String(),
	}

	var resp paymentResponse
	if err := a.client.Do(ctx, http.MethodPost, "/payments", a.headers(), body, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Asaas, err)
	}
	return resp.charge(), nil
}

func (a *Adapter) GetCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	var resp paymentResponse
	if err := a.client.Do(ctx, http.MethodGet, "/payments/"+url.PathEscape(externalID), a.headers(), nil, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Asaas, err)
	}
	return resp.charge(), nil
}

// CancelCharge deletes the charge, which Asaas reports as DELETED afterwards.
func (a *Adapter) CancelCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	var resp struct {
		Deleted bool   `json:"deleted"`
		ID      string `json:"id"`
	}
	if err := a.client.Do(ctx, http.MethodDelete, "/payments/"+url.PathEscape(externalID), a.headers(), nil, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Asaas, err)
	}
	return domain.Charge{
		ExternalID: externalID,
		RawStatus:  "DELETED",
		Signal:     domain.MapStatus(domain.Asaas, "DELETED"),
	}, nil
}

// ensureCustomer reuses the customer registered under the same CPF/CNPJ.
func (a *Adapter) ensureCustomer(ctx context.Context, customer domain.Customer) (string, error) {
	document := domain.Digits(customer.Document)
	if document != "" {
		var list struct {
			Data []struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		path := "/customers?cpfCnpj=" + url.QueryEscape(document)
		if err := a.client.Do(ctx, http.MethodGet, path, a.headers(), nil, &list); err != nil {
			return "", domain.Upstream(domain.Asaas, err)
		}
		if len(list.Data) > 0 && list.Data[0].ID != "" {
			return list.Data[0].ID, nil
		}
	}

	body := map[string]any{
		"name":    customer.Name,
		"cpfCnpj": document,
	}
	if customer.Email != "" {
		body["email"] = customer.Email
	}
	if phone := domain.Digits(customer.Phone); phone != "" {
		body["mobilePhone"] = phone
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := a.client.Do(ctx, http.MethodPost, "/customers", a.headers(), body, &created); err != nil {
		return "", domain.Upstream(domain.Asaas, err)
	}
	if created.ID == "" {
		return "", domain.ErrInvalidPayload
	}
	return created.ID, nil
}

func (a *Adapter) headers() http.Header {
	h := http.Header{}
	h.Set("access_token", a.apiKey)
	return h
}

type paymentResponse struct {
	ID         string  `json:"id"`
	Status     string  `json:"status"`
	Value      float64 `json:"value"`
	DueDate    string  `json:"dueDate"`
	InvoiceURL string  `json:"invoiceUrl"`
}

func (r paymentResponse) charge() domain.Charge {
	charge := domain.Charge{
		ExternalID:  r.ID,
		RawStatus:   r.Status,
		Signal:      domain.MapStatus(domain.Asaas, r.Status),
		Amount:      domain.FromReais(r.Value),
		CheckoutURL: r.InvoiceURL,
	}
	if due, err := time.Parse(dateLayout, r.DueDate); err == nil {
		charge.DueDate = &due
	}
	return charge
}
