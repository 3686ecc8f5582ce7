package gerencianet

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/rest"
)

const (
	defaultBaseURL = "https://cobrancas.api.efipay.com.br"
	sandboxBaseURL = "https://cobrancas-h.api.efipay.com.br"
	dateLayout     = "2006-01-02"
	tokenSkew      = 30 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Gateway() domain.Gateway {
	return domain.Gerencianet
}

// ParseWebhook extracts the notification token; the charge id is only known after
// ResolveNotification.
func (f *Factory) ParseWebhook(delivery domain.Delivery) ([]domain.Notification, error) {
	token := ""
	body := strings.TrimSpace(string(delivery.Body))
	switch {
	case strings.HasPrefix(body, "{"):
		var payload struct {
			Notification string `json:"notification"`
		}
		if err := json.Unmarshal([]byte(body), &payload); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		token = payload.Notification
	case body != "":
		form, err := url.ParseQuery(body)
		if err != nil {
			return nil, domain.ErrInvalidPayload
		}
		token = form.Get("notification")
	}
	if token == "" {
		token = delivery.Query.Get("notification")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, domain.ErrInvalidPayload
	}
	return []domain.Notification{{Token: token, Event: "notification"}}, nil
}

func (f *Factory) NewAdapter(cfg domain.Config) (domain.Adapter, error) {
	clientID := cfg.Secrets.String("client_id")
	clientSecret := cfg.Secrets.String("client_secret")
	if clientID == "" || clientSecret == "" {
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
		clientID:     clientID,
		clientSecret: clientSecret,
	}, nil
}

type Adapter struct {
	client       *rest.Client
	clientID     string
	clientSecret string

	mu      sync.Mutex
	token   string
	expires time.Time
}

func (a *Adapter) Verify(domain.Delivery) error {
	return nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.CreateChargeRequest) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}

	name := strings.TrimSpace(req.Description)
	if name == "" {
		name = "Mensalidade"
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now().UTC()
	}
	metadata := map[string]any{"custom_id": req.PaymentID.String()}
	if req.NotificationURL != "" {
		metadata["notification_url"] = req.NotificationURL
	}
	body := map[string]any{
		"items": []map[string]any{{
			"name":   name,
			"value":  req.Amount,
			"amount": 1,
		}},
		"metadata": metadata,
		"settings": map[string]any{
			"payment_method": "all",
			"expire_at":      dueDate.Format(dateLayout),
		},
	}

	var resp envelope[chargeData]
	if err := a.client.Do(ctx, http.MethodPost, "/v1/charge/one-step/link", headers, body, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Gerencianet, err)
	}
	charge := resp.Data.charge()
	charge.DueDate = &dueDate
	return charge, nil
}

func (a *Adapter) GetCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	var resp envelope[chargeData]
	if err := a.client.Do(ctx, http.MethodGet, "/v1/charge/"+url.PathEscape(externalID), headers, nil, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Gerencianet, err)
	}
	return resp.Data.charge(), nil
}

func (a *Adapter) CancelCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	path := "/v1/charge/" + url.PathEscape(externalID) + "/cancel"
	if err := a.client.Do(ctx, http.MethodPut, path, headers, nil, nil); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Gerencianet, err)
	}
	return domain.Charge{
		ExternalID: externalID,
		RawStatus:  "canceled",
		Signal:     domain.MapStatus(domain.Gerencianet, "canceled"),
	}, nil
}

// ResolveNotification exchanges a notification token for the charge id of its latest event.
func (a *Adapter) ResolveNotification(ctx context.Context, token string) (string, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return "", err
	}
	var resp envelope[[]struct {
		Identifiers struct {
			ChargeID json.Number `json:"charge_id"`
		} `json:"identifiers"`
	}]
	if err := a.client.Do(ctx, http.MethodGet, "/v1/notification/"+url.PathEscape(token), headers, nil, &resp); err != nil {
		return "", domain.Upstream(domain.Gerencianet, err)
	}
	for i := len(resp.Data) - 1; i >= 0; i-- {
		if id := resp.Data[i].Identifiers.ChargeID.String(); id != "" {
			return id, nil
		}
	}
	return "", domain.ErrInvalidPayload
}

func (a *Adapter) headers(ctx context.Context) (http.Header, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && time.Now().Before(a.expires) {
		return a.token, nil
	}

	basic := base64.StdEncoding.EncodeToString([]byte(a.clientID + ":" + a.clientSecret))
	headers := http.Header{}
	headers.Set("Authorization", "Basic "+basic)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	body := map[string]string{"grant_type": "client_credentials"}
	if err := a.client.Do(ctx, http.MethodPost, "/v1/authorize", headers, body, &resp); err != nil {
		return "", domain.Upstream(domain.Gerencianet, err)
	}
	if resp.AccessToken == "" {
		return "", domain.ErrInvalidConfig
	}
	a.token = resp.AccessToken
	a.expires = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSkew)
	return a.token, nil
}

type envelope[T any] struct {
	Code int `json:"code"`
	Data T   `json:"data"`
}

type chargeData struct {
	ChargeID   json.Number `json:"charge_id"`
	Status     string      `json:"status"`
	Total      int64       `json:"total"`
	PaymentURL string      `json:"payment_url"`
}

// charge converts the response; Gerencianet amounts are already in centavos.
func (d chargeData) charge() domain.Charge {
	return domain.Charge{
		ExternalID:  d.ChargeID.String(),
		RawStatus:   d.Status,
		Signal:      domain.MapStatus(domain.Gerencianet, d.Status),
		Amount:      d.Total,
		CheckoutURL: d.PaymentURL,
	}
}
