package webhook

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Outcome string

const (
	OutcomeApplied          Outcome = "applied"
	OutcomeUnchanged        Outcome = "unchanged"
	OutcomePreserved        Outcome = "preserved"
	OutcomeNotFound         Outcome = "not_found"
	OutcomeIgnored          Outcome = "ignored"
	OutcomeUnknownGateway   Outcome = "unknown_gateway"
	OutcomeInvalidPayload   Outcome = "invalid_payload"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeCredentialsError Outcome = "credentials_error"
	OutcomeGatewayError     Outcome = "gateway_error"
	OutcomeError            Outcome = "error"
)

// Delivery is one processed webhook notification.
type Delivery struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	CompanyID      *snowflake.ID `json:"company_id,omitempty"`
	Gateway        string        `json:"gateway"`
	ExternalID     *string       `json:"external_id,omitempty"`
	DeliveryID     string        `json:"delivery_id"`
	Outcome        Outcome       `json:"outcome"`
	PreviousStatus *string       `json:"previous_status,omitempty"`
	ResolvedStatus *string       `json:"resolved_status,omitempty"`
	ReceivedAt     time.Time     `json:"received_at"`
}

func (Delivery) TableName() string { return "payment_webhook_deliveries" }

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, delivery *Delivery) error
}

type repo struct{}

func ProvideRepository() Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, d *Delivery) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_webhook_deliveries (
			id, company_id, gateway, external_id, delivery_id, outcome,
			previous_status, resolved_status, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID,
		d.CompanyID,
		d.Gateway,
		d.ExternalID,
		d.DeliveryID,
		d.Outcome,
		d.PreviousStatus,
		d.ResolvedStatus,
		d.ReceivedAt,
	).Error
}
