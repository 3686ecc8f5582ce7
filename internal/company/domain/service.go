package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type CreateCompanyRequest struct {
	Name           string  `json:"name"`
	CustomDomain   *string `json:"custom_domain"`
	DefaultGateway *string `json:"default_gateway"`
}

type UpdateCompanyRequest struct {
	Name           *string `json:"name"`
	CustomDomain   *string `json:"custom_domain"`
	DefaultGateway *string `json:"default_gateway"`
}

type Service interface {
	Create(ctx context.Context, req CreateCompanyRequest) (Company, error)
	Current(ctx context.Context) (Company, error)
	Get(ctx context.Context, id snowflake.ID) (Company, error)
	Update(ctx context.Context, req UpdateCompanyRequest) (Company, error)
	ListIDs(ctx context.Context) ([]snowflake.ID, error)
	// CheckoutBaseURL resolves the public checkout host for a company.
	CheckoutBaseURL(ctx context.Context, id snowflake.ID) (string, error)
}

var (
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidName    = errors.New("invalid_name")
	ErrInvalidDomain  = errors.New("invalid_custom_domain")
	ErrInvalidGateway = errors.New("invalid_default_gateway")
	ErrSlugTaken      = errors.New("slug_taken")
	ErrNotFound       = errors.New("not_found")
)
