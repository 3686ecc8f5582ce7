package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(value) {
	case StatusActive, StatusSuspended, StatusCancelled, StatusExpired:
		return Status(value), true
	default:
		return "", false
	}
}

// Contract owns the recurrence policy of the charges linked to it.
// MonthlyValue is in centavos; zero means "reuse the previous charge amount".
type Contract struct {
	ID           snowflake.ID  `gorm:"primaryKey" json:"id"`
	CompanyID    snowflake.ID  `gorm:"not null;index" json:"company_id"`
	ClientID     snowflake.ID  `gorm:"not null;index" json:"client_id"`
	PlanID       *snowflake.ID `json:"plan_id,omitempty"`
	Status       Status        `gorm:"not null" json:"status"`
	MonthlyValue int64         `gorm:"not null" json:"monthly_value"`
	StartDate    time.Time     `gorm:"type:date;not null" json:"start_date"`
	EndDate      *time.Time    `gorm:"type:date" json:"end_date,omitempty"`
	CreatedAt    time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time     `gorm:"not null" json:"updated_at"`
}

func (Contract) TableName() string { return "contracts" }

func (c Contract) IsActive() bool {
	return c.Status == StatusActive
}
