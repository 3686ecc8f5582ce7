package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	List(ctx context.Context, db *gorm.DB, companyID snowflake.ID) ([]Credential, error)
	Find(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider Provider) (*Credential, error)
	Upsert(ctx context.Context, db *gorm.DB, credential *Credential) error
	UpdateStatus(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider Provider, isActive bool, updatedAt time.Time) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, companyID snowflake.ID, provider Provider) (bool, error)
}
