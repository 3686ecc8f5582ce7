package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, event *domain.Event) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_events (id, company_id, payment_id, event_type, payload, published_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.CompanyID,
		event.PaymentID,
		event.EventType,
		event.Payload,
		event.PublishedAt,
		event.CreatedAt,
	).Error
}

func (r *repo) ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []*domain.Event
	err := db.WithContext(ctx).Raw(
		`SELECT id, company_id, payment_id, event_type, payload, published_at, created_at
		 FROM payment_events
		 WHERE published_at IS NULL
		 ORDER BY id ASC
		 LIMIT ?`,
		limit,
	).Scan(&events).Error
	if err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkPublished(ctx context.Context, db *gorm.DB, ids []snowflake.ID, publishedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.WithContext(ctx).Exec(
		`UPDATE payment_events SET published_at = ? WHERE id IN ? AND published_at IS NULL`,
		publishedAt,
		ids,
	).Error
}
