package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	List(ctx context.Context) ([]Summary, error)
	Get(ctx context.Context, provider string) (Summary, error)
	Upsert(ctx context.Context, req UpsertRequest) (Summary, error)
	SetActive(ctx context.Context, provider string, isActive bool) (Summary, error)
	Delete(ctx context.Context, provider string) error

	// Resolve decrypts an active credential for use by a gateway or messaging client.
	Resolve(ctx context.Context, companyID snowflake.ID, provider Provider) (Secrets, error)
}

// Summary is the masked view returned by the API.
type Summary struct {
	Provider  Provider       `json:"provider"`
	IsActive  bool           `json:"is_active"`
	Fields    map[string]any `json:"fields,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type UpsertRequest struct {
	Provider string         `json:"provider"`
	Config   map[string]any `json:"config"`
}

var (
	ErrInvalidCompany       = errors.New("invalid_company")
	ErrInvalidProvider      = errors.New("invalid_provider")
	ErrInvalidConfig        = errors.New("invalid_config")
	ErrNotFound             = errors.New("not_found")
	ErrInactive             = errors.New("credential_inactive")
	ErrEncryptionKeyMissing = errors.New("encryption_key_missing")
	ErrDecrypt              = errors.New("credential_decrypt_failed")
)
