package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, contract *Contract) error
	FindByID(ctx context.Context, db *gorm.DB, companyID, id snowflake.ID) (*Contract, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID, filter ListContractFilter, page pagination.Pagination) ([]*Contract, error)
	Update(ctx context.Context, db *gorm.DB, contract *Contract) error
}
