package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Company struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	Name           string       `gorm:"not null" json:"name"`
	Slug           string       `gorm:"not null;uniqueIndex" json:"slug"`
	CustomDomain   *string      `gorm:"column:custom_domain" json:"custom_domain,omitempty"`
	DefaultGateway *string      `gorm:"column:default_gateway" json:"default_gateway,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

func (Company) TableName() string { return "companies" }
