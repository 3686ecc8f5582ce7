package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, key *APIKey) error
	Revoke(ctx context.Context, db *gorm.DB, companyID snowflake.ID, keyID string, at time.Time) (bool, error)
	FindByKeyID(ctx context.Context, db *gorm.DB, companyID snowflake.ID, keyID string) (*APIKey, error)
	FindActiveByHash(ctx context.Context, db *gorm.DB, hash string) (*APIKey, error)
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]APIKey, error)
	TouchLastUsed(ctx context.Context, db *gorm.DB, id snowflake.ID, at time.Time) error
}
