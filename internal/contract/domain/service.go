package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
)

// Dates use the YYYY-MM-DD layout.
type CreateContractRequest struct {
	ClientID     string  `json:"client_id"`
	PlanID       *string `json:"plan_id"`
	MonthlyValue *int64  `json:"monthly_value"`
	StartDate    string  `json:"start_date"`
	EndDate      *string `json:"end_date"`
}

type UpdateContractRequest struct {
	Status       *string `json:"status"`
	MonthlyValue *int64  `json:"monthly_value"`
	EndDate      *string `json:"end_date"`
}

type ListContractRequest struct {
	pagination.Pagination
	Status   string `form:"status"`
	ClientID string `form:"client_id"`
}

type ListContractFilter struct {
	Status   string
	ClientID snowflake.ID
}

type ListContractResponse struct {
	pagination.PageInfo
	Contracts []Contract `json:"contracts"`
}

type Service interface {
	Create(ctx context.Context, req CreateContractRequest) (Contract, error)
	List(ctx context.Context, req ListContractRequest) (ListContractResponse, error)
	GetByID(ctx context.Context, id string) (Contract, error)
	// Get loads a contract for an explicit tenant without mutating it.
	Get(ctx context.Context, companyID, id snowflake.ID) (Contract, error)
	Update(ctx context.Context, id string, req UpdateContractRequest) (Contract, error)
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidClient    = errors.New("invalid_client")
	ErrInvalidPlan      = errors.New("invalid_plan")
	ErrInvalidValue     = errors.New("invalid_monthly_value")
	ErrInvalidStartDate = errors.New("invalid_start_date")
	ErrInvalidEndDate   = errors.New("invalid_end_date")
	ErrInvalidStatus    = errors.New("invalid_status")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
