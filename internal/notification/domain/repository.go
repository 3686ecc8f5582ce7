package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status    string
	EventType string
	ClientID  *snowflake.ID
	PaymentID *snowflake.ID
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, n *Notification) error
	// InsertIfAbsent skips rows that collide with an existing (payment_id, event_type) pair.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, n *Notification) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Notification, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Notification, error)
	ListDue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]*Notification, error)
	Update(ctx context.Context, db *gorm.DB, n *Notification) error
}
