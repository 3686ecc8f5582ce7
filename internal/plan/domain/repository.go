package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, plan *Plan) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Plan, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, activeOnly bool, page pagination.Pagination) ([]*Plan, error)
	Update(ctx context.Context, db *gorm.DB, plan *Plan) error
}
