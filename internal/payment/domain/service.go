package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
)

type CreatePaymentRequest struct {
	ClientID        string         `json:"client_id"`
	ContractID      *string        `json:"contract_id"`
	Amount          int64          `json:"amount"`
	DueDate         *string        `json:"due_date"`
	PaymentGateway  *string        `json:"payment_gateway"`
	TransactionType string         `json:"transaction_type"`
	Description     *string        `json:"description"`
	Metadata        map[string]any `json:"metadata"`
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
	Force  bool   `json:"force"`
}

type ListPaymentRequest struct {
	pagination.Pagination
	Status     string `form:"status"`
	ClientID   string `form:"client_id"`
	ContractID string `form:"contract_id"`
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

// StatusChange is the outcome of reconciling a gateway signal.
type StatusChange struct {
	Payment   Payment `json:"payment"`
	Previous  Status  `json:"previous_status"`
	Changed   bool    `json:"changed"`
	Preserved bool    `json:"preserved"`
}

type Service interface {
	Create(ctx context.Context, req CreatePaymentRequest) (Payment, error)
	List(ctx context.Context, req ListPaymentRequest) (ListPaymentResponse, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	Get(ctx context.Context, companyID, id snowflake.ID) (Payment, error)
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (StatusChange, error)
	Cancel(ctx context.Context, id string) (Payment, error)
	Delete(ctx context.Context, id string) error

	FindByExternalID(ctx context.Context, gateway, externalID string) (*Payment, error)
	LinkGateway(ctx context.Context, companyID, id snowflake.ID, gateway, externalID string, checkoutURL *string) (Payment, error)
	ApplyGatewaySignal(ctx context.Context, companyID, id snowflake.ID, signal Signal) (StatusChange, error)

	GenerateNextCharge(ctx context.Context, companyID, paymentID snowflake.ID) (GenerateResult, error)
	Backfill(ctx context.Context, companyID snowflake.ID) (BackfillSummary, error)
	MarkOverdue(ctx context.Context, companyID snowflake.ID, limit int) (int, error)
	GenerateReceipt(ctx context.Context, companyID, id snowflake.ID) ([]byte, error)
}

var (
	ErrInvalidCompany         = errors.New("invalid_company")
	ErrInvalidClient          = errors.New("invalid_client")
	ErrInvalidContract        = errors.New("invalid_contract")
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrInvalidDueDate         = errors.New("invalid_due_date")
	ErrInvalidGateway         = errors.New("invalid_gateway")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrInvalidExternalID      = errors.New("invalid_external_id")
	ErrInvalidID              = errors.New("invalid_id")
	ErrPaidImmutable          = errors.New("paid_payment_immutable")
	ErrReceiptUnavailable     = errors.New("receipt_unavailable")
	ErrExternalIDConflict     = errors.New("external_id_conflict")
	ErrPeriodConflict         = errors.New("period_conflict")
	ErrStatusConflict         = errors.New("status_conflict")
	ErrNotFound               = errors.New("not_found")
)
