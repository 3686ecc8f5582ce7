package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventType string

const (
	EventPreDue  EventType = "pre_due"
	EventOnDue   EventType = "on_due"
	EventPostDue EventType = "post_due"
	EventManual  EventType = "manual"
	EventPaid    EventType = "paid"
)

func ParseEventType(value string) (EventType, bool) {
	switch EventType(value) {
	case EventPreDue, EventOnDue, EventPostDue, EventManual, EventPaid:
		return EventType(value), true
	default:
		return "", false
	}
}

// Reminder reports whether the event is tied to an unpaid charge.
func (e EventType) Reminder() bool {
	return e == EventPreDue || e == EventOnDue || e == EventPostDue
}

type Status string

const (
	StatusPending Status = "pending"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusPending, StatusSent, StatusFailed, StatusSkipped:
		return Status(value), true
	default:
		return "", false
	}
}

type Notification struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID  `gorm:"not null;index" json:"company_id"`
	ClientID     snowflake.ID  `gorm:"not null" json:"client_id"`
	PaymentID    *snowflake.ID `json:"payment_id,omitempty"`
	EventType    EventType     `gorm:"not null" json:"event_type"`
	OffsetDays   int           `gorm:"not null" json:"offset_days"`
	ScheduledFor time.Time     `gorm:"not null" json:"scheduled_for"`
	Status       Status        `gorm:"not null" json:"status"`
	Attempts     int           `gorm:"not null" json:"attempts"`
	LastError    *string       `json:"last_error,omitempty"`
	MessageBody  string        `gorm:"not null" json:"message_body"`
	SentAt       *time.Time    `json:"sent_at,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (Notification) TableName() string { return "payment_notifications" }
