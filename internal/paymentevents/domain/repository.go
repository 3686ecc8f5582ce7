package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, event *Event) error
	ListUnpublished(ctx context.Context, db *gorm.DB, limit int) ([]*Event, error)
	MarkPublished(ctx context.Context, db *gorm.DB, ids []snowflake.ID, publishedAt time.Time) error
}
