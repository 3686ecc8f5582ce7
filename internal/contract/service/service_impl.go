package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/contract/domain"
	plandomain "github.com/smallbiznis/vehicleguard/internal/plan/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	ClientRepo clientdomain.Repository
	PlanRepo   plandomain.Repository
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clientRepo clientdomain.Repository
	planRepo   plandomain.Repository
}

func New(p Params) domain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("contract.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clientRepo: p.ClientRepo,
		planRepo:   p.PlanRepo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateContractRequest) (domain.Contract, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Contract{}, domain.ErrInvalidCompany
	}

	clientID, err := parseID(req.ClientID)
	if err != nil {
		return domain.Contract{}, domain.ErrInvalidClient
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, companyID, clientID)
	if err != nil {
		return domain.Contract{}, err
	}
	if client == nil {
		return domain.Contract{}, domain.ErrInvalidClient
	}

	startDate, err := parseDate(req.StartDate)
	if err != nil {
		return domain.Contract{}, domain.ErrInvalidStartDate
	}
	endDate, err := parseOptionalDate(req.EndDate)
	if err != nil {
		return domain.Contract{}, err
	}
	if endDate != nil && endDate.Before(startDate) {
		return domain.Contract{}, domain.ErrInvalidEndDate
	}

	var monthlyValue int64
	var planID *snowflake.ID
	if req.PlanID != nil && strings.TrimSpace(*req.PlanID) != "" {
		id, err := parseID(*req.PlanID)
		if err != nil {
			return domain.Contract{}, domain.ErrInvalidPlan
		}
		plan, err := s.planRepo.FindByID(ctx, s.db, companyID, id)
		if err != nil {
			return domain.Contract{}, err
		}
		if plan == nil || !plan.Active {
			return domain.Contract{}, domain.ErrInvalidPlan
		}
		planID = &id
		monthlyValue = plan.MonthlyValue
	}
	if req.MonthlyValue != nil {
		monthlyValue = *req.MonthlyValue
	}
	if monthlyValue < 0 {
		return domain.Contract{}, domain.ErrInvalidValue
	}

	now := time.Now().UTC()
	contract := domain.Contract{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		ClientID:     clientID,
		PlanID:       planID,
		Status:       domain.StatusActive,
		MonthlyValue: monthlyValue,
		StartDate:    startDate,
		EndDate:      endDate,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &contract); err != nil {
		return domain.Contract{}, err
	}
	return contract, nil
}

func (s *Service) List(ctx context.Context, req domain.ListContractRequest) (domain.ListContractResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ListContractResponse{}, domain.ErrInvalidCompany
	}

	filter := domain.ListContractFilter{Status: strings.TrimSpace(req.Status)}
	if filter.Status != "" {
		if _, ok := domain.ParseStatus(filter.Status); !ok {
			return domain.ListContractResponse{}, domain.ErrInvalidStatus
		}
	}
	if strings.TrimSpace(req.ClientID) != "" {
		clientID, err := parseID(req.ClientID)
		if err != nil {
			return domain.ListContractResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = clientID
	}

	items, err := s.repo.List(ctx, s.db, companyID, filter, req.Pagination)
	if err != nil {
		return domain.ListContractResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination, func(c *domain.Contract) string {
		return c.ID.String()
	})

	contracts := make([]domain.Contract, 0, len(items))
	for _, item := range items {
		contracts = append(contracts, *item)
	}
	return domain.ListContractResponse{PageInfo: pageInfo, Contracts: contracts}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Contract, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Contract{}, domain.ErrInvalidCompany
	}
	contractID, err := parseID(id)
	if err != nil {
		return domain.Contract{}, domain.ErrInvalidID
	}
	return s.Get(ctx, companyID, contractID)
}

func (s *Service) Get(ctx context.Context, companyID, id snowflake.ID) (domain.Contract, error) {
	if companyID == 0 {
		return domain.Contract{}, domain.ErrInvalidCompany
	}
	if id == 0 {
		return domain.Contract{}, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.Contract{}, err
	}
	if item == nil {
		return domain.Contract{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateContractRequest) (domain.Contract, error) {
	contract, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Contract{}, err
	}

	if req.Status != nil {
		status, ok := domain.ParseStatus(strings.TrimSpace(*req.Status))
		if !ok {
			return domain.Contract{}, domain.ErrInvalidStatus
		}
		contract.Status = status
	}
	if req.MonthlyValue != nil {
		if *req.MonthlyValue < 0 {
			return domain.Contract{}, domain.ErrInvalidValue
		}
		contract.MonthlyValue = *req.MonthlyValue
	}
	if req.EndDate != nil {
		endDate, err := parseOptionalDate(req.EndDate)
		if err != nil {
			return domain.Contract{}, err
		}
		if endDate != nil && endDate.Before(contract.StartDate) {
			return domain.Contract{}, domain.ErrInvalidEndDate
		}
		contract.EndDate = endDate
	}
	contract.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, &contract); err != nil {
		return domain.Contract{}, err
	}
	s.log.Info("contract updated",
		zap.String("contract_id", contract.ID.String()),
		zap.String("status", string(contract.Status)),
	)
	return contract, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func parseDate(value string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
}

// An empty string clears the end date.
func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	parsed, err := parseDate(*value)
	if err != nil {
		return nil, domain.ErrInvalidEndDate
	}
	return &parsed, nil
}
