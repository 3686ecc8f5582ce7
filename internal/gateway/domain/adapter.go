package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/bwmarrin/snowflake"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
)

// Delivery is one inbound webhook request as received by the HTTP layer.
type Delivery struct {
	Body    []byte
	Headers http.Header
	Query   url.Values
}

// Notification identifies the charge a webhook refers to. Token is set instead of
// ExternalID when the gateway only sends an opaque notification handle.
type Notification struct {
	ExternalID string
	Token      string
	Event      string
}

// Config carries the decrypted credentials an adapter is built from.
type Config struct {
	CompanyID  snowflake.ID
	Secrets    credentialdomain.Secrets
	HTTPClient *http.Client
	BaseURL    string
}

type Customer struct {
	Name     string
	Document string
	Email    string
	Phone    string
}

type CreateChargeRequest struct {
	PaymentID       snowflake.ID
	Amount          int64
	DueDate         time.Time
	Description     string
	NotificationURL string
	Customer        Customer
}

// Charge is the gateway's authoritative view of a charge. Amount is in centavos.
type Charge struct {
	ExternalID  string               `json:"external_id"`
	RawStatus   string               `json:"status"`
	Signal      paymentdomain.Signal `json:"signal"`
	Amount      int64                `json:"amount"`
	CheckoutURL string               `json:"checkout_url,omitempty"`
	DueDate     *time.Time           `json:"due_date,omitempty"`
}

// Factory builds adapters for one gateway. Webhook parsing needs no credentials
// because the tenant is unknown until the charge is looked up.
type Factory interface {
	Gateway() Gateway
	ParseWebhook(delivery Delivery) ([]Notification, error)
	NewAdapter(cfg Config) (Adapter, error)
}

type Adapter interface {
	Verify(delivery Delivery) error
	CreateCharge(ctx context.Context, req CreateChargeRequest) (Charge, error)
	GetCharge(ctx context.Context, externalID string) (Charge, error)
	CancelCharge(ctx context.Context, externalID string) (Charge, error)
}

// NotificationResolver is implemented by gateways whose webhooks carry a token that
// must be exchanged for the charge identifier.
type NotificationResolver interface {
	ResolveNotification(ctx context.Context, token string) (string, error)
}

var (
	ErrUnknownGateway   = errors.New("unknown_gateway")
	ErrInvalidConfig    = errors.New("invalid_gateway_config")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrEventIgnored     = errors.New("event_ignored")
	ErrChargeNotFound   = errors.New("charge_not_found")
	ErrUnsupported      = errors.New("unsupported_action")
)

// UpstreamError is a non-2xx gateway response. Body is kept for audit and operator display.
type UpstreamError struct {
	Gateway    Gateway
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s returned status %d", e.Gateway, e.StatusCode)
}
