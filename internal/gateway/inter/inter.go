package inter

import (
	"bytes"
	"context"
	"crypto/tls"
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
	defaultBaseURL = "https://cdpj.partners.bancointer.com.br"
	tokenScope     = "boleto-cobranca.read boleto-cobranca.write"
	dateLayout     = "2006-01-02"
	tokenSkew      = 30 * time.Second
)

type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Gateway() domain.Gateway {
	return domain.Inter
}

// ParseWebhook accepts both the batched array form and a single callback object.
func (f *Factory) ParseWebhook(delivery domain.Delivery) ([]domain.Notification, error) {
	body := bytes.TrimSpace(delivery.Body)
	if len(body) == 0 {
		return nil, domain.ErrInvalidPayload
	}

	var items []callback
	if body[0] == '[' {
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, domain.ErrInvalidPayload
		}
	} else {
		var item callback
		if err := json.Unmarshal(body, &item); err != nil {
			return nil, domain.ErrInvalidPayload
		}
		items = []callback{item}
	}

	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		id := strings.TrimSpace(item.CodigoSolicitacao)
		if id == "" {
			continue
		}
		out = append(out, domain.Notification{ExternalID: id, Event: item.Situacao})
	}
	if len(out) == 0 {
		return nil, domain.ErrInvalidPayload
	}
	return out, nil
}

func (f *Factory) NewAdapter(cfg domain.Config) (domain.Adapter, error) {
	clientID := cfg.Secrets.String("client_id")
	clientSecret := cfg.Secrets.String("client_secret")
	if clientID == "" || clientSecret == "" {
		return nil, domain.ErrInvalidConfig
	}

	httpClient := cfg.HTTPClient
	cert, key := cfg.Secrets.String("certificate"), cfg.Secrets.String("private_key")
	if cert != "" && key != "" {
		pair, err := tls.X509KeyPair([]byte(cert), []byte(key))
		if err != nil {
			return nil, domain.ErrInvalidConfig
		}
		httpClient = &http.Client{
			Timeout: rest.DefaultTimeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{Certificates: []tls.Certificate{pair}, MinVersion: tls.VersionTLS12},
			},
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		client:       rest.NewClient(baseURL, httpClient),
		clientID:     clientID,
		clientSecret: clientSecret,
		account:      cfg.Secrets.String("account"),
	}, nil
}

type Adapter struct {
	client       *rest.Client
	clientID     string
	clientSecret string
	account      string

	mu      sync.Mutex
	token   string
	expires time.Time
}

// Verify is a no-op: Inter authenticates its callbacks with mTLS at the edge.
func (a *Adapter) Verify(domain.Delivery) error {
	return nil
}

func (a *Adapter) CreateCharge(ctx context.Context, req domain.CreateChargeRequest) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}

	document := domain.Digits(req.Customer.Document)
	personType := "FISICA"
	if len(document) > 11 {
		personType = "JURIDICA"
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = time.Now().UTC()
	}
	// seuNumero is limited to 15 characters.
	ref := req.PaymentID.String()
	if len(ref) > 15 {
		ref = ref[len(ref)-15:]
	}
	body := map[string]any{
		"seuNumero":      ref,
		"valorNominal":   domain.ToReais(req.Amount),
		"dataVencimento": dueDate.Format(dateLayout),
		"numDiasAgenda":  60,
		"pagador": map[string]any{
			"cpfCnpj":    document,
			"tipoPessoa": personType,
			"nome":       req.Customer.Name,
			"email":      req.Customer.Email,
		},
	}

	var resp struct {
		CodigoSolicitacao string `json:"codigoSolicitacao"`
	}
	if err := a.client.Do(ctx, http.MethodPost, "/cobranca/v3/cobrancas", headers, body, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Inter, err)
	}
	if resp.CodigoSolicitacao == "" {
		return domain.Charge{}, domain.ErrInvalidPayload
	}
	return domain.Charge{
		ExternalID: resp.CodigoSolicitacao,
		RawStatus:  "A_RECEBER",
		Signal:     domain.MapStatus(domain.Inter, "A_RECEBER"),
		Amount:     req.Amount,
		DueDate:    &dueDate,
	}, nil
}

func (a *Adapter) GetCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	var resp struct {
		Cobranca struct {
			CodigoSolicitacao string  `json:"codigoSolicitacao"`
			Situacao          string  `json:"situacao"`
			ValorNominal      float64 `json:"valorNominal,string"`
			DataVencimento    string  `json:"dataVencimento"`
		} `json:"cobranca"`
	}
	path := "/cobranca/v3/cobrancas/" + url.PathEscape(externalID)
	if err := a.client.Do(ctx, http.MethodGet, path, headers, nil, &resp); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Inter, err)
	}

	charge := domain.Charge{
		ExternalID: externalID,
		RawStatus:  resp.Cobranca.Situacao,
		Signal:     domain.MapStatus(domain.Inter, resp.Cobranca.Situacao),
		Amount:     domain.FromReais(resp.Cobranca.ValorNominal),
	}
	if due, err := time.Parse(dateLayout, resp.Cobranca.DataVencimento); err == nil {
		charge.DueDate = &due
	}
	return charge, nil
}

func (a *Adapter) CancelCharge(ctx context.Context, externalID string) (domain.Charge, error) {
	headers, err := a.headers(ctx)
	if err != nil {
		return domain.Charge{}, err
	}
	path := "/cobranca/v3/cobrancas/" + url.PathEscape(externalID) + "/cancelar"
	body := map[string]string{"motivoCancelamento": "Cancelado pelo emissor"}
	if err := a.client.Do(ctx, http.MethodPost, path, headers, body, nil); err != nil {
		return domain.Charge{}, domain.Upstream(domain.Inter, err)
	}
	return domain.Charge{
		ExternalID: externalID,
		RawStatus:  "CANCELADO",
		Signal:     domain.MapStatus(domain.Inter, "CANCELADO"),
	}, nil
}

func (a *Adapter) headers(ctx context.Context) (http.Header, error) {
	token, err := a.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	if a.account != "" {
		h.Set("x-conta-corrente", a.account)
	}
	return h, nil
}

func (a *Adapter) accessToken(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != "" && time.Now().Before(a.expires) {
		return a.token, nil
	}

	form := url.Values{}
	form.Set("client_id", a.clientID)
	form.Set("client_secret", a.clientSecret)
	form.Set("grant_type", "client_credentials")
	form.Set("scope", tokenScope)

	var resp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := a.client.PostForm(ctx, "/oauth/v2/token", nil, form, &resp); err != nil {
		return "", domain.Upstream(domain.Inter, err)
	}
	if resp.AccessToken == "" {
		return "", domain.ErrInvalidConfig
	}
	a.token = resp.AccessToken
	a.expires = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - tokenSkew)
	return a.token, nil
}

type callback struct {
	CodigoSolicitacao string `json:"codigoSolicitacao"`
	Situacao          string `json:"situacao"`
}
