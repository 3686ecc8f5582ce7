package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	Status     string
	ClientID   snowflake.ID
	ContractID snowflake.ID
}

// PeriodQuery identifies the billing month a contract charge belongs to.
type PeriodQuery struct {
	CompanyID  snowflake.ID
	ClientID   snowflake.ID
	ContractID snowflake.ID
	Period     string
	MonthStart time.Time
	MonthEnd   time.Time
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	// InsertIfAbsent reports false when a live charge already holds the contract period.
	InsertIfAbsent(ctx context.Context, db *gorm.DB, payment *Payment) (bool, error)
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Payment, error)
	// FindByExternalID is unscoped: webhooks only know the gateway reference.
	FindByExternalID(ctx context.Context, db *gorm.DB, gateway, externalID string) (*Payment, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListFilter, page pagination.Pagination) ([]*Payment, error)
	ExistsForPeriod(ctx context.Context, db *gorm.DB, q PeriodQuery) (bool, error)
	ListPaidWithActiveContract(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]*Payment, error)
	ListOverdueCandidates(ctx context.Context, db *gorm.DB, companyID snowflake.ID, asOf time.Time, limit int) ([]*Payment, error)
	// UpdateStatus writes payment.Status only while the row still holds from.
	// It reports false when another writer moved the status first.
	UpdateStatus(ctx context.Context, db *gorm.DB, payment *Payment, from Status) (bool, error)
	UpdateGatewayLink(ctx context.Context, db *gorm.DB, payment *Payment) error
	Delete(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) error
}
