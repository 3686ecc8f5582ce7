package service

import (
	"context"
	"strings"
	"time"
	"unicode"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
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
		log:   p.Log.Named("client.service"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateClientRequest) (domain.Client, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Client{}, domain.ErrInvalidCompany
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.Client{}, domain.ErrInvalidName
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.Client{}, err
	}
	phone, err := normalizePhone(req.Phone)
	if err != nil {
		return domain.Client{}, err
	}

	now := time.Now().UTC()
	client := domain.Client{
		ID:        s.genID.Generate(),
		CompanyID: companyID,
		Name:      name,
		Document:  normalizeDocument(req.Document),
		Email:     email,
		Phone:     phone,
		Status:    domain.StatusActive,
		Metadata:  datatypes.JSONMap(req.Metadata),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if client.Metadata == nil {
		client.Metadata = datatypes.JSONMap{}
	}

	if err := s.repo.Insert(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

func (s *Service) List(ctx context.Context, req domain.ListClientRequest) (domain.ListClientResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ListClientResponse{}, domain.ErrInvalidCompany
	}

	filter := domain.ListClientFilter{
		Status: strings.ToLower(strings.TrimSpace(req.Status)),
		Name:   strings.TrimSpace(req.Name),
	}
	if filter.Status != "" && !validStatus(domain.Status(filter.Status)) {
		return domain.ListClientResponse{}, domain.ErrInvalidStatus
	}

	items, err := s.repo.List(ctx, s.db, companyID, filter, req.Pagination)
	if err != nil {
		return domain.ListClientResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination, func(c *domain.Client) string {
		return c.ID.String()
	})

	clients := make([]domain.Client, 0, len(items))
	for _, item := range items {
		clients = append(clients, *item)
	}
	return domain.ListClientResponse{PageInfo: pageInfo, Clients: clients}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Client, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Client{}, domain.ErrInvalidCompany
	}
	clientID, err := parseID(id)
	if err != nil {
		return domain.Client{}, err
	}
	return s.Get(ctx, companyID, clientID)
}

func (s *Service) Get(ctx context.Context, companyID, id snowflake.ID) (domain.Client, error) {
	item, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.Client{}, err
	}
	if item == nil {
		return domain.Client{}, domain.ErrNotFound
	}
	return *item, nil
}

func (s *Service) Update(ctx context.Context, id string, req domain.UpdateClientRequest) (domain.Client, error) {
	client, err := s.GetByID(ctx, id)
	if err != nil {
		return domain.Client{}, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Client{}, domain.ErrInvalidName
		}
		client.Name = name
	}
	if req.Document != nil {
		client.Document = normalizeDocument(req.Document)
	}
	if req.Email != nil {
		if client.Email, err = normalizeEmail(req.Email); err != nil {
			return domain.Client{}, err
		}
	}
	if req.Phone != nil {
		if client.Phone, err = normalizePhone(req.Phone); err != nil {
			return domain.Client{}, err
		}
	}
	if req.Status != nil {
		status := domain.Status(strings.ToLower(strings.TrimSpace(*req.Status)))
		if !validStatus(status) {
			return domain.Client{}, domain.ErrInvalidStatus
		}
		client.Status = status
	}
	if req.Metadata != nil {
		client.Metadata = datatypes.JSONMap(req.Metadata)
	}
	client.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, s.db, &client); err != nil {
		return domain.Client{}, err
	}
	return client, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func validStatus(status domain.Status) bool {
	return status == domain.StatusActive || status == domain.StatusInactive
}

func normalizeEmail(value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	email := strings.ToLower(strings.TrimSpace(*value))
	if !strings.Contains(email, "@") {
		return nil, domain.ErrInvalidEmail
	}
	return &email, nil
}

// normalizePhone keeps digits only; Brazilian numbers have 10 or 11 digits plus an optional 55 prefix.
func normalizePhone(value *string) (*string, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	digits := onlyDigits(*value)
	if len(digits) < 10 || len(digits) > 13 {
		return nil, domain.ErrInvalidPhone
	}
	return &digits, nil
}

func normalizeDocument(value *string) *string {
	if value == nil {
		return nil
	}
	digits := onlyDigits(*value)
	if digits == "" {
		return nil
	}
	return &digits
}

func onlyDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
