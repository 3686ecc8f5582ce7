package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Provider string

const (
	ProviderMercadoPago Provider = "mercadopago"
	ProviderAsaas       Provider = "asaas"
	ProviderInter       Provider = "inter"
	ProviderGerencianet Provider = "gerencianet"
	ProviderEvolution   Provider = "evolution"
)

func ParseProvider(value string) (Provider, bool) {
	switch p := Provider(strings.ToLower(strings.TrimSpace(value))); p {
	case ProviderMercadoPago, ProviderAsaas, ProviderInter, ProviderGerencianet, ProviderEvolution:
		return p, true
	default:
		return "", false
	}
}

// Credential stores one provider's secrets for a company. Config holds the encrypted
// envelope, never plaintext.
type Credential struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	CompanyID snowflake.ID   `json:"company_id" gorm:"not null;index:ux_integration_credentials_company_provider,priority:1"`
	Provider  Provider       `json:"provider" gorm:"type:text;not null;index:ux_integration_credentials_company_provider,priority:2"`
	Config    datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`
	IsActive  bool           `json:"is_active" gorm:"not null;default:true"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (Credential) TableName() string { return "integration_credentials" }

// Secrets is a decrypted credential config.
type Secrets map[string]any

func (s Secrets) String(key string) string {
	value, ok := s[key]
	if !ok || value == nil {
		return ""
	}
	str, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(str)
}
