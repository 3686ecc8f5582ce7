package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Plan is a subscription offering; MonthlyValue is in centavos.
type Plan struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID `gorm:"not null;index" json:"company_id"`
	Name         string       `gorm:"not null" json:"name"`
	Description  *string      `json:"description,omitempty"`
	MonthlyValue int64        `gorm:"not null" json:"monthly_value"`
	BillingDay   *int         `json:"billing_day,omitempty"`
	Active       bool         `gorm:"not null" json:"active"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

func (Plan) TableName() string { return "plans" }
