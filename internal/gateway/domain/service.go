package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
)

const (
	ActionCreateCharge = "create_charge"
	ActionGetCharge    = "get_charge"
	ActionCancelCharge = "cancel_charge"
)

// Envelope is the uniform request shape for gateway actions.
type Envelope struct {
	Action    string     `json:"action" validate:"required,oneof=create_charge get_charge cancel_charge"`
	CompanyID string     `json:"company_id" validate:"omitempty,numeric"`
	Data      InvokeData `json:"data"`
}

type InvokeData struct {
	PaymentID   string        `json:"payment_id" validate:"omitempty,numeric"`
	ExternalID  string        `json:"external_id" validate:"omitempty,max=128"`
	Amount      int64         `json:"amount" validate:"omitempty,gt=0"`
	DueDate     string        `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Description string        `json:"description" validate:"omitempty,max=255"`
	Customer    *CustomerData `json:"customer" validate:"omitempty"`
}

type CustomerData struct {
	Name     string `json:"name" validate:"required"`
	Document string `json:"document" validate:"omitempty,min=11,max=18"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
}

type InvokeResult struct {
	Action  string                 `json:"action"`
	Gateway Gateway                `json:"gateway"`
	Charge  Charge                 `json:"charge"`
	Payment *paymentdomain.Payment `json:"payment,omitempty"`
}

type Service interface {
	Invoke(ctx context.Context, gateway string, env Envelope) (InvokeResult, error)
	// Adapter builds a credentialed adapter for one company.
	Adapter(ctx context.Context, companyID snowflake.ID, gateway Gateway) (Adapter, error)
	ParseWebhook(gateway string, delivery Delivery) ([]Notification, error)
}

var (
	ErrInvalidCompany  = errors.New("invalid_company")
	ErrCompanyMismatch = errors.New("company_mismatch")
	ErrInvalidEnvelope = errors.New("invalid_envelope")
)

// ValidationError lists field errors from envelope validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return ErrInvalidEnvelope.Error()
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidEnvelope
}
