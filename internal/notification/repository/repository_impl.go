package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

const columns = `id, company_id, client_id, payment_id, event_type, offset_days, scheduled_for, status,
	attempts, last_error, message_body, sent_at, created_at, updated_at`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return r.insert(ctx, db, n, "").Error
}

func (r *repo) InsertIfAbsent(ctx context.Context, db *gorm.DB, n *domain.Notification) (bool, error) {
	res := r.insert(ctx, db, n, " ON CONFLICT DO NOTHING")
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) insert(ctx context.Context, db *gorm.DB, n *domain.Notification, suffix string) *gorm.DB {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_notifications (`+columns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`+suffix,
		n.ID,
		n.CompanyID,
		n.ClientID,
		n.PaymentID,
		n.EventType,
		n.OffsetDays,
		n.ScheduledFor,
		n.Status,
		n.Attempts,
		n.LastError,
		n.MessageBody,
		n.SentAt,
		n.CreatedAt,
		n.UpdatedAt,
	)
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*domain.Notification, error) {
	var n domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM payment_notifications WHERE company_id = ? AND id = ?`,
		companyID,
		id,
	).Scan(&n).Error
	if err != nil {
		return nil, err
	}
	if n.ID == 0 {
		return nil, nil
	}
	return &n, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Notification, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("company_id = ?", companyID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.EventType != "" {
		stmt = stmt.Where("event_type = ?", filter.EventType)
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.PaymentID != nil {
		stmt = stmt.Where("payment_id = ?", *filter.PaymentID)
	}
	stmt, err := pagination.Apply(stmt, "", page)
	if err != nil {
		return nil, err
	}

	var items []*domain.Notification
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// ListDue returns pending rows of every company whose time has come, oldest first.
func (r *repo) ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*domain.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	var items []*domain.Notification
	err := db.WithContext(ctx).Raw(
		`SELECT `+columns+` FROM payment_notifications
		 WHERE status = ? AND scheduled_for <= ?
		 ORDER BY scheduled_for ASC, id ASC
		 LIMIT ?`,
		domain.StatusPending,
		now,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	return db.WithContext(ctx).Exec(
		`UPDATE payment_notifications
		 SET status = ?, attempts = ?, last_error = ?, message_body = ?, scheduled_for = ?, sent_at = ?, updated_at = ?
		 WHERE company_id = ? AND id = ?`,
		n.Status,
		n.Attempts,
		n.LastError,
		n.MessageBody,
		n.ScheduledFor,
		n.SentAt,
		n.UpdatedAt,
		n.CompanyID,
		n.ID,
	).Error
}
