package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/vehicleguard/internal/cache"
	"github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Config config.Config
	Cache  *cache.CheckoutBaseCache `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	cache      *cache.CheckoutBaseCache
	defaultURL string
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("company.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		cache:      p.Cache,
		defaultURL: p.Config.AppBaseURL,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateCompanyRequest) (domain.Company, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Company{}, domain.ErrInvalidName
	}
	customDomain, err := normalizeDomain(req.CustomDomain)
	if err != nil {
		return domain.Company{}, err
	}
	gateway, err := normalizeGateway(req.DefaultGateway)
	if err != nil {
		return domain.Company{}, err
	}

	id := s.genID.Generate()
	companySlug := slug.Make(name)
	if companySlug == "" {
		companySlug = "company"
	}
	existing, err := s.repo.FindBySlug(ctx, s.db, companySlug)
	if err != nil {
		return domain.Company{}, err
	}
	if existing != nil {
		companySlug = companySlug + "-" + strings.ToLower(id.Base36())
	}

	now := time.Now().UTC()
	company := domain.Company{
		ID:             id,
		Name:           name,
		Slug:           companySlug,
		CustomDomain:   customDomain,
		DefaultGateway: gateway,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.Insert(ctx, s.db, &company); err != nil {
		return domain.Company{}, err
	}

	s.log.Info("company created", zap.String("company_id", company.ID.String()), zap.String("slug", company.Slug))
	return company, nil
}

func (s *Service) Current(ctx context.Context) (domain.Company, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Company{}, domain.ErrInvalidCompany
	}
	return s.Get(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (domain.Company, error) {
	if id == 0 {
		return domain.Company{}, domain.ErrInvalidCompany
	}
	item, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.Company{}, err
	}
	if item == nil {
		return domain.Company{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateCompanyRequest) (domain.Company, error) {
	company, err := s.Current(ctx)
	if err != nil {
		return domain.Company{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Company{}, domain.ErrInvalidName
		}
		company.Name = name
	}
	if req.CustomDomain != nil {
		company.CustomDomain, err = normalizeDomain(req.CustomDomain)
		if err != nil {
			return domain.Company{}, err
		}
	}
	if req.DefaultGateway != nil {
		company.DefaultGateway, err = normalizeGateway(req.DefaultGateway)
		if err != nil {
			return domain.Company{}, err
		}
	}
	company.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, &company); err != nil {
		return domain.Company{}, err
	}
	s.cache.Invalidate(company.ID)
	return company, nil
}

func (s *Service) ListIDs(ctx context.Context) ([]snowflake.ID, error) {
	return s.repo.ListIDs(ctx, s.db)
}

func (s *Service) CheckoutBaseURL(ctx context.Context, id snowflake.ID) (string, error) {
	if base, ok := s.cache.Get(id); ok {
		return base, nil
	}
	company, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	base := domain.CheckoutBaseURL(company, s.defaultURL)
	s.cache.Set(id, base)
	return base, nil
}

// normalizeDomain maps an empty value to nil so the company falls back to the default URL.
func normalizeDomain(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	host := domain.NormalizeDomain(*value)
	if host == "" {
		return nil, nil
	}
	if strings.ContainsAny(host, " /?#") || !strings.Contains(host, ".") {
		return nil, domain.ErrInvalidDomain
	}
	host = strings.ToLower(host)
	return &host, nil
}

func normalizeGateway(value *string) (*string, error) {
	if value == nil {
		return nil, nil
	}
	if strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	gw, ok := gatewaydomain.Parse(*value)
	if !ok {
		return nil, domain.ErrInvalidGateway
	}
	gateway := gw.String()
	return &gateway, nil
}
