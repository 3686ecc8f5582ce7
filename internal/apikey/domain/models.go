package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin, RoleOperator, RoleViewer:
		return Role(value), true
	default:
		return "", false
	}
}

// APIKey stores a hashed credential scoped to one company and role.
type APIKey struct {
	ID         snowflake.ID `gorm:"primaryKey"`
	CompanyID  snowflake.ID `gorm:"column:company_id;not null"`
	KeyID      string       `gorm:"column:key_id;type:text;not null;uniqueIndex"`
	Name       string       `gorm:"type:text;not null"`
	KeyHash    string       `gorm:"column:key_hash;type:text;not null;uniqueIndex"`
	Role       Role         `gorm:"type:text;not null"`
	IsActive   bool         `gorm:"column:is_active;not null;default:true"`
	LastUsedAt *time.Time   `gorm:"column:last_used_at"`
	CreatedAt  time.Time    `gorm:"not null"`
	RevokedAt  *time.Time   `gorm:"column:revoked_at"`
}

// TableName sets the database table name.
func (APIKey) TableName() string { return "api_keys" }
