package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/plan/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("plan.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePlanRequest) (domain.Plan, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Plan{}, domain.ErrInvalidCompany
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Plan{}, domain.ErrInvalidName
	}
	if req.MonthlyValue < 0 {
		return domain.Plan{}, domain.ErrInvalidValue
	}
	if err := validateBillingDay(req.BillingDay); err != nil {
		return domain.Plan{}, err
	}

	now := time.Now().UTC()
	plan := domain.Plan{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		Name:         name,
		Description:  trimOptional(req.Description),
		MonthlyValue: req.MonthlyValue,
		BillingDay:   req.BillingDay,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &plan); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPlanRequest) (domain.ListPlanResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ListPlanResponse{}, domain.ErrInvalidCompany
	}

	items, err := s.repo.List(ctx, s.db, companyID, req.ActiveOnly, req.Pagination)
	if err != nil {
		return domain.ListPlanResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination, func(p *domain.Plan) string {
		return p.ID.String()
	})

	plans := make([]domain.Plan, 0, len(items))
	for _, item := range items {
		plans = append(plans, *item)
	}
	return domain.ListPlanResponse{PageInfo: pageInfo, Plans: plans}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Plan, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Plan{}, domain.ErrInvalidCompany
	}
	planID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || planID == 0 {
		return domain.Plan{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, companyID, planID)
	if err != nil {
		return domain.Plan{}, err
	}
	if item == nil {
		return domain.Plan{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdatePlanRequest) (domain.Plan, error) {
	plan, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Plan{}, domain.ErrInvalidName
		}
		plan.Name = name
	}
	if req.Description != nil {
		plan.Description = trimOptional(req.Description)
	}
	if req.MonthlyValue != nil {
		if *req.MonthlyValue < 0 {
			return domain.Plan{}, domain.ErrInvalidValue
		}
		plan.MonthlyValue = *req.MonthlyValue
	}
	if req.BillingDay != nil {
		if err := validateBillingDay(req.BillingDay); err != nil {
			return domain.Plan{}, err
		}
		plan.BillingDay = req.BillingDay
	}
	if req.Active != nil {
		plan.Active = *req.Active
	}
	plan.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, &plan); err != nil {
		return domain.Plan{}, err
	}
	return plan, nil
}

func validateBillingDay(day *int) error {
	if day == nil {
		return nil
	}
	if *day < 1 || *day > 31 {
		return domain.ErrInvalidBillingDay
	}
	return nil
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
