package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
)

type ListClientRequest struct {
	pagination.Pagination
	Status string `form:"status"`
	Name   string `form:"name"`
}

type ListClientFilter struct {
	Status string
	Name   string
}

type ListClientResponse struct {
	pagination.PageInfo
	Clients []Client `json:"clients"`
}

type CreateClientRequest struct {
	Name     string         `json:"name"`
	Document *string        `json:"document"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateClientRequest struct {
	Name     *string        `json:"name"`
	Document *string        `json:"document"`
	Email    *string        `json:"email"`
	Phone    *string        `json:"phone"`
	Status   *string        `json:"status"`
	Metadata map[string]any `json:"metadata"`
}

type Service interface {
	Create(ctx context.Context, req CreateClientRequest) (Client, error)
	List(ctx context.Context, req ListClientRequest) (ListClientResponse, error)
	GetByID(ctx context.Context, id string) (Client, error)
	// Get loads a client for an explicit tenant; used by background workers.
	Get(ctx context.Context, companyID, id snowflake.ID) (Client, error)
	Update(ctx context.Context, id string, req UpdateClientRequest) (Client, error)
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidEmail   = errors.New("invalid_email")
	ErrInvalidPhone   = errors.New("invalid_phone")
	ErrInvalidStatus  = errors.New("invalid_status")
	ErrInvalidID      = errors.New("invalid_id")
	ErrNotFound       = errors.New("not_found")
)
