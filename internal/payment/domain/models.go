package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusOverdue   Status = "overdue"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusPending, StatusOverdue, StatusPaid, StatusCancelled, StatusRefunded:
		return Status(value), true
	default:
		return "", false
	}
}

// Open reports whether the charge still awaits payment.
func (s Status) Open() bool {
	return s == StatusPending || s == StatusOverdue
}

type TransactionType string

const (
	TransactionTypeCharge    TransactionType = "charge"
	TransactionTypeRecurring TransactionType = "recurring"
	TransactionTypeManual    TransactionType = "manual"
)

func ParseTransactionType(value string) (TransactionType, bool) {
	switch TransactionType(value) {
	case TransactionTypeCharge, TransactionTypeRecurring, TransactionTypeManual:
		return TransactionType(value), true
	default:
		return "", false
	}
}

// Payment is one billable charge due from a client. Amount is in centavos and Period is
// the YYYY-MM billing month of contract charges.
type Payment struct {
	ID              snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID       snowflake.ID      `gorm:"not null;index" json:"company_id"`
	ClientID        snowflake.ID      `gorm:"not null;index" json:"client_id"`
	ContractID      *snowflake.ID     `json:"contract_id,omitempty"`
	Amount          int64             `gorm:"not null" json:"amount"`
	DueDate         *time.Time        `gorm:"type:date" json:"due_date,omitempty"`
	Period          *string           `json:"period,omitempty"`
	Status          Status            `gorm:"not null" json:"status"`
	PaymentGateway  *string           `json:"payment_gateway,omitempty"`
	ExternalID      *string           `json:"external_id,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	TransactionType TransactionType   `gorm:"not null" json:"transaction_type"`
	Description     *string           `json:"description,omitempty"`
	CheckoutURL     *string           `json:"checkout_url,omitempty"`
	Metadata        datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt       time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"not null" json:"updated_at"`
}

func (Payment) TableName() string { return "payment_transactions" }
