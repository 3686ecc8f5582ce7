package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/audit/masking"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Repo     domain.Repository
	Cfg      config.Config
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     domain.Repository
	genID    *snowflake.Node
	encKey   []byte
	auditSvc auditdomain.Service
}

func New(p Params) (domain.Service, error) {
	key, err := deriveKey(p.Cfg.CredentialsEncryptionKey)
	if err != nil {
		return nil, err
	}
	log := p.Log.Named("credential.service")
	if len(key) == 0 {
		log.Warn("CREDENTIALS_ENCRYPTION_KEY not set, integration credentials are unavailable")
	}

	return &Service{
		db:       p.DB,
		log:      log,
		repo:     p.Repo,
		genID:    p.GenID,
		encKey:   key,
		auditSvc: p.AuditSvc,
	}, nil
}

func (s *Service) List(ctx context.Context) ([]domain.Summary, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return nil, domain.ErrInvalidCompany
	}

	items, err := s.repo.List(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Summary, 0, len(items))
	for _, item := range items {
		resp = append(resp, s.summarize(item))
	}
	return resp, nil
}

func (s *Service) Get(ctx context.Context, provider string) (domain.Summary, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidCompany
	}
	p, ok := domain.ParseProvider(provider)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidProvider
	}

	item, err := s.repo.Find(ctx, s.db, companyID, p)
	if err != nil {
		return domain.Summary{}, err
	}
	if item == nil {
		return domain.Summary{}, domain.ErrNotFound
	}
	return s.summarize(*item), nil
}

func (s *Service) Upsert(ctx context.Context, req domain.UpsertRequest) (domain.Summary, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidCompany
	}
	provider, ok := domain.ParseProvider(req.Provider)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidProvider
	}

	config := normalizeConfig(req.Config)
	if len(config) == 0 {
		return domain.Summary{}, domain.ErrInvalidConfig
	}
	encrypted, err := encrypt(s.encKey, config)
	if err != nil {
		return domain.Summary{}, err
	}

	existing, err := s.repo.Find(ctx, s.db, companyID, provider)
	if err != nil {
		return domain.Summary{}, err
	}

	now := time.Now().UTC()
	item := domain.Credential{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Provider:  provider,
		Config:    encrypted,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if existing != nil {
		item.ID = existing.ID
		item.IsActive = existing.IsActive
		item.CreatedAt = existing.CreatedAt
	}

	if err := s.repo.Upsert(ctx, s.db, &item); err != nil {
		return domain.Summary{}, err
	}

	action := "credential.rotate"
	if existing == nil {
		action = "credential.create"
	}
	s.audit(ctx, companyID, action, provider, map[string]any{
		"provider":      string(provider),
		"masked_fields": masking.MaskJSON(config),
	})

	return domain.Summary{
		Provider:  provider,
		IsActive:  item.IsActive,
		Fields:    masking.MaskJSON(config),
		UpdatedAt: item.UpdatedAt,
	}, nil
}

func (s *Service) SetActive(ctx context.Context, provider string, isActive bool) (domain.Summary, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidCompany
	}
	p, ok := domain.ParseProvider(provider)
	if !ok {
		return domain.Summary{}, domain.ErrInvalidProvider
	}

	updated, err := s.repo.UpdateStatus(ctx, s.db, companyID, p, isActive, time.Now().UTC())
	if err != nil {
		return domain.Summary{}, err
	}
	if !updated {
		return domain.Summary{}, domain.ErrNotFound
	}

	action := "credential.disable"
	if isActive {
		action = "credential.enable"
	}
	s.audit(ctx, companyID, action, p, map[string]any{"provider": string(p), "is_active": isActive})

	return s.Get(ctx, provider)
}

func (s *Service) Delete(ctx context.Context, provider string) error {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ErrInvalidCompany
	}
	p, ok := domain.ParseProvider(provider)
	if !ok {
		return domain.ErrInvalidProvider
	}

	deleted, err := s.repo.Delete(ctx, s.db, companyID, p)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.audit(ctx, companyID, "credential.delete", p, map[string]any{"provider": string(p)})
	return nil
}

func (s *Service) Resolve(ctx context.Context, companyID snowflake.ID, provider domain.Provider) (domain.Secrets, error) {
	if companyID == 0 {
		return nil, domain.ErrInvalidCompany
	}
	item, err := s.repo.Find(ctx, s.db, companyID, provider)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	if !item.IsActive {
		return nil, domain.ErrInactive
	}
	return decrypt(s.encKey, item.Config)
}

// summarize never fails: an undecryptable row is listed without fields.
func (s *Service) summarize(item domain.Credential) domain.Summary {
	summary := domain.Summary{
		Provider:  item.Provider,
		IsActive:  item.IsActive,
		UpdatedAt: item.UpdatedAt,
	}
	secrets, err := decrypt(s.encKey, item.Config)
	if err != nil {
		s.log.Warn("credential not readable",
			zap.String("company_id", item.CompanyID.String()),
			zap.String("provider", string(item.Provider)),
			zap.Error(err),
		)
		return summary
	}
	summary.Fields = masking.MaskJSON(secrets)
	return summary
}

func (s *Service) audit(ctx context.Context, companyID snowflake.ID, action string, provider domain.Provider, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := string(provider)
	if err := s.auditSvc.AuditLog(ctx, &companyID, "", nil, action, "integration_credential", &targetID, metadata); err != nil {
		s.log.Warn("failed to write credential audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeConfig(config map[string]any) map[string]any {
	if len(config) == 0 {
		return nil
	}

	normalized := make(map[string]any, len(config))
	for key, value := range config {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" || value == nil {
			continue
		}

		switch cast := value.(type) {
		case string:
			trimmedValue := strings.TrimSpace(cast)
			if trimmedValue == "" {
				continue
			}
			normalized[trimmedKey] = trimmedValue
		default:
			normalized[trimmedKey] = cast
		}
	}

	if len(normalized) == 0 {
		return nil
	}
	return normalized
}
