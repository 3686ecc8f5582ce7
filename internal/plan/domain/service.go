package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
)

type CreatePlanRequest struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	MonthlyValue int64   `json:"monthly_value"`
	BillingDay   *int    `json:"billing_day"`
}

type UpdatePlanRequest struct {
	Name         *string `json:"name"`
	Description  *string `json:"description"`
	MonthlyValue *int64  `json:"monthly_value"`
	BillingDay   *int    `json:"billing_day"`
	Active       *bool   `json:"active"`
}

type ListPlanRequest struct {
	pagination.Pagination
	ActiveOnly bool `form:"active_only"`
}

type ListPlanResponse struct {
	pagination.PageInfo
	Plans []Plan `json:"plans"`
}

type Service interface {
	Create(ctx context.Context, req CreatePlanRequest) (Plan, error)
	List(ctx context.Context, req ListPlanRequest) (ListPlanResponse, error)
	GetByID(ctx context.Context, id string) (Plan, error)
	Update(ctx context.Context, id string, req UpdatePlanRequest) (Plan, error)
}

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidValue      = errors.New("invalid_monthly_value")
	ErrInvalidBillingDay = errors.New("invalid_billing_day")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
)
