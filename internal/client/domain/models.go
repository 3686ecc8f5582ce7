package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

type Client struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	CompanyID snowflake.ID      `gorm:"not null;index" json:"company_id"`
	Name      string            `gorm:"not null" json:"name"`
	Document  *string           `json:"document,omitempty"`
	Email     *string           `json:"email,omitempty"`
	Phone     *string           `json:"phone,omitempty"`
	Status    Status            `gorm:"not null" json:"status"`
	Metadata  datatypes.JSONMap `gorm:"not null" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time         `gorm:"not null" json:"updated_at"`
}

func (Client) TableName() string { return "clients" }
