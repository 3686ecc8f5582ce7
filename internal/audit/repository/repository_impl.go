package repository

import (
	"context"
	"strings"

	"github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

const insertAuditLog = `INSERT INTO audit_logs
	(id, company_id, actor_type, actor_id, action, target_type, target_id, metadata, ip_address, user_agent, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

// Insert appends an entry. Audit rows are never updated.
func (r *repo) Insert(ctx context.Context, db *gorm.DB, e *domain.AuditLog) error {
	if e == nil {
		return nil
	}
	return db.WithContext(ctx).Exec(insertAuditLog,
		e.ID, e.CompanyID, e.ActorType, e.ActorID, e.Action, e.TargetType, e.TargetID,
		e.Metadata, e.IPAddress, e.UserAgent, e.CreatedAt,
	).Error
}

// List returns one company's entries. An action ending in ".*" matches the
// whole family, so "payment.*" covers status changes, deletions and backfills.
func (r *repo) List(ctx context.Context, db *gorm.DB, f domain.ListFilter, page pagination.Pagination) ([]*domain.AuditLog, error) {
	q := db.WithContext(ctx).Model(&domain.AuditLog{}).Where("company_id = ?", f.CompanyID)

	if action := strings.TrimSpace(f.Action); strings.HasSuffix(action, ".*") {
		q = q.Where("action LIKE ?", strings.TrimSuffix(action, "*")+"%")
	} else if action != "" {
		q = q.Where("action = ?", action)
	}

	for column, value := range map[string]string{
		"target_type": f.TargetType,
		"target_id":   f.TargetID,
		"actor_type":  f.ActorType,
	} {
		if value = strings.TrimSpace(value); value != "" {
			q = q.Where(column+" = ?", value)
		}
	}

	if f.StartAt != nil {
		q = q.Where("created_at >= ?", f.StartAt.UTC())
	}
	if f.EndAt != nil {
		q = q.Where("created_at <= ?", f.EndAt.UTC())
	}

	q, err := pagination.Apply(q, "", page)
	if err != nil {
		return nil, err
	}

	var out []*domain.AuditLog
	return out, q.Find(&out).Error
}
