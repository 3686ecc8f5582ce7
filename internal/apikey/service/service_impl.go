package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const apiKeySecretBytes = 32

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     apikeydomain.Repository
	AuditSvc auditdomain.Service `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	repo     apikeydomain.Repository
	genID    *snowflake.Node
	clock    clock.Clock
	auditSvc auditdomain.Service
}

func New(p Params) apikeydomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("apikey.service"),
		repo:     p.Repo,
		genID:    p.GenID,
		clock:    p.Clock,
		auditSvc: p.AuditSvc,
	}
}

func (s *Service) List(ctx context.Context) ([]apikeydomain.Response, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	items, err := s.repo.List(ctx, s.db, companyID)
	if err != nil {
		return nil, err
	}

	resp := make([]apikeydomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req apikeydomain.CreateRequest) (*apikeydomain.SecretResponse, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apikeydomain.ErrInvalidName
	}
	roleValue := strings.ToLower(strings.TrimSpace(req.Role))
	if roleValue == "" {
		roleValue = string(apikeydomain.RoleOperator)
	}
	role, ok := apikeydomain.ParseRole(roleValue)
	if !ok {
		return nil, apikeydomain.ErrInvalidRole
	}

	key, plain, err := s.newKey(companyID, name, role)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Insert(ctx, s.db, key); err != nil {
		return nil, err
	}

	s.audit(ctx, companyID, "api_key.create", key.KeyID, map[string]any{"name": name, "role": string(role)})
	return &apikeydomain.SecretResponse{KeyID: key.KeyID, Role: role, APIKey: plain}, nil
}

// Rotate revokes the key and issues a replacement with the same name and role.
func (s *Service) Rotate(ctx context.Context, keyID string) (*apikeydomain.SecretResponse, error) {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return nil, apikeydomain.ErrInvalidKeyID
	}

	var result *apikeydomain.SecretResponse
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByKeyID(ctx, tx, companyID, trimmed)
		if err != nil {
			return err
		}
		if current == nil || !current.IsActive {
			return apikeydomain.ErrNotFound
		}

		revoked, err := s.repo.Revoke(ctx, tx, companyID, current.KeyID, s.clock.Now().UTC())
		if err != nil {
			return err
		}
		if !revoked {
			return apikeydomain.ErrNotFound
		}

		next, plain, err := s.newKey(companyID, current.Name, current.Role)
		if err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, next); err != nil {
			return err
		}

		result = &apikeydomain.SecretResponse{KeyID: next.KeyID, Role: next.Role, APIKey: plain}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, companyID, "api_key.rotate", trimmed, map[string]any{"replaced_by": result.KeyID})
	return result, nil
}

func (s *Service) Revoke(ctx context.Context, keyID string) error {
	companyID, err := s.companyIDFromContext(ctx)
	if err != nil {
		return err
	}

	trimmed := strings.TrimSpace(keyID)
	if trimmed == "" {
		return apikeydomain.ErrInvalidKeyID
	}

	revoked, err := s.repo.Revoke(ctx, s.db, companyID, trimmed, s.clock.Now().UTC())
	if err != nil {
		return err
	}
	if !revoked {
		return apikeydomain.ErrNotFound
	}

	s.audit(ctx, companyID, "api_key.revoke", trimmed, nil)
	return nil
}

func (s *Service) Authenticate(ctx context.Context, raw string) (*apikeydomain.APIKey, error) {
	raw = strings.TrimSpace(raw)
	if !apikeydomain.LooksLikeKey(raw) {
		return nil, apikeydomain.ErrUnauthorized
	}

	hash := apikeydomain.HashAPIKey(raw)
	key, err := s.repo.FindActiveByHash(ctx, s.db, hash)
	if err != nil {
		return nil, err
	}
	if key == nil || subtle.ConstantTimeCompare([]byte(key.KeyHash), []byte(hash)) != 1 {
		return nil, apikeydomain.ErrUnauthorized
	}

	if err := s.repo.TouchLastUsed(ctx, s.db, key.ID, s.clock.Now().UTC()); err != nil {
		s.log.Warn("failed to record api key usage", zap.String("key_id", key.KeyID), zap.Error(err))
	}
	return key, nil
}

func (s *Service) newKey(companyID snowflake.ID, name string, role apikeydomain.Role) (*apikeydomain.APIKey, string, error) {
	id := s.genID.Generate()
	keyID := newKeyID(id)
	plain, hash, err := generateAPIKey(keyID)
	if err != nil {
		return nil, "", err
	}
	return &apikeydomain.APIKey{
		ID:        id,
		CompanyID: companyID,
		KeyID:     keyID,
		Name:      name,
		KeyHash:   hash,
		Role:      role,
		IsActive:  true,
		CreatedAt: s.clock.Now().UTC(),
	}, plain, nil
}

func (s *Service) companyIDFromContext(ctx context.Context) (snowflake.ID, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok || companyID == 0 {
		return 0, apikeydomain.ErrInvalidCompany
	}
	return companyID, nil
}

func (s *Service) audit(ctx context.Context, companyID snowflake.ID, action, keyID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	if err := s.auditSvc.AuditLog(ctx, &companyID, "", nil, action, "api_key", &keyID, metadata); err != nil {
		s.log.Warn("failed to write audit log", zap.String("action", action), zap.Error(err))
	}
}

func toResponse(key *apikeydomain.APIKey) apikeydomain.Response {
	return apikeydomain.Response{
		KeyID:      key.KeyID,
		Name:       key.Name,
		Role:       key.Role,
		IsActive:   key.IsActive,
		CreatedAt:  key.CreatedAt,
		LastUsedAt: key.LastUsedAt,
		RevokedAt:  key.RevokedAt,
	}
}

func generateAPIKey(keyID string) (string, string, error) {
	secret := make([]byte, apiKeySecretBytes)
	if _, err := rand.Read(secret); err != nil {
		return "", "", err
	}

	secretPart := hex.EncodeToString(secret)
	trimmed := strings.TrimPrefix(keyID, "key_")
	plain := fmt.Sprintf("%s%s_%s", apikeydomain.KeyPrefix, strings.ToLower(trimmed), secretPart)
	return plain, apikeydomain.HashAPIKey(plain), nil
}

func newKeyID(id snowflake.ID) string {
	return "key_" + strings.ToUpper(strconv.FormatInt(int64(id), 36))
}
