package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	EventPaymentCreated       = "payment.created"
	EventPaymentStatusChanged = "payment.status_changed"
	EventPaymentDeleted       = "payment.deleted"
)

// Event is an outbox row written in the same transaction as the payment change it describes.
type Event struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID   snowflake.ID      `gorm:"not null;index" json:"company_id"`
	PaymentID   snowflake.ID      `gorm:"not null" json:"payment_id"`
	EventType   string            `gorm:"not null" json:"event_type"`
	Payload     datatypes.JSONMap `gorm:"not null" json:"payload"`
	PublishedAt *time.Time        `json:"published_at,omitempty"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
}

func (Event) TableName() string { return "payment_events" }

// Message is the wire form pushed to Redis and to SSE subscribers.
type Message struct {
	ID        string         `json:"id"`
	CompanyID string         `json:"company_id"`
	PaymentID string         `json:"payment_id"`
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

func (e Event) Message() Message {
	return Message{
		ID:        e.ID.String(),
		CompanyID: e.CompanyID.String(),
		PaymentID: e.PaymentID.String(),
		Type:      e.EventType,
		Payload:   map[string]any(e.Payload),
		CreatedAt: e.CreatedAt,
	}
}

var ErrInvalidCompany = errors.New("invalid_company")
