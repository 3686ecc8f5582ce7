package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	contractdomain "github.com/smallbiznis/vehicleguard/internal/contract/domain"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	eventdomain "github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"github.com/smallbiznis/vehicleguard/internal/providers/pdf"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"github.com/smallbiznis/vehicleguard/pkg/db"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"github.com/smallbiznis/vehicleguard/pkg/rls"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	dateLayout = "2006-01-02"

	// statusWriteAttempts bounds re-reads when another writer moves a payment's
	// status between our read and our conditional write.
	statusWriteAttempts = 3

	sourceGateway   = "gateway"
	sourceManual    = "manual"
	sourceScheduler = "scheduler"
)

var errStatusMoved = errors.New("payment status moved concurrently")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Repo         domain.Repository
	EventRepo    eventdomain.Repository
	ClientRepo   clientdomain.Repository
	ContractRepo contractdomain.Repository
	CompanySvc   companydomain.Service
	AuditSvc     auditdomain.Service
	Locker       *ratelimit.Locker   `optional:"true"`
	ObsMetrics   *obsmetrics.Metrics `optional:"true"`
	PDF          pdf.Provider        `optional:"true"`
}

type Service struct {
	db           *gorm.DB
	log          *zap.Logger
	genID        *snowflake.Node
	clock        clock.Clock
	repo         domain.Repository
	eventRepo    eventdomain.Repository
	clientRepo   clientdomain.Repository
	contractRepo contractdomain.Repository
	companySvc   companydomain.Service
	auditSvc     auditdomain.Service
	locker       *ratelimit.Locker
	obsMetrics   *obsmetrics.Metrics
	pdf          pdf.Provider
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:           p.DB,
		log:          p.Log.Named("payment.service"),
		genID:        p.GenID,
		clock:        clk,
		repo:         p.Repo,
		eventRepo:    p.EventRepo,
		clientRepo:   p.ClientRepo,
		contractRepo: p.ContractRepo,
		companySvc:   p.CompanySvc,
		auditSvc:     p.AuditSvc,
		locker:       p.Locker,
		obsMetrics:   p.ObsMetrics,
		pdf:          p.PDF,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreatePaymentRequest) (domain.Payment, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Payment{}, domain.ErrInvalidCompany
	}
	if req.Amount <= 0 {
		return domain.Payment{}, domain.ErrInvalidAmount
	}

	clientID, err := parseID(req.ClientID)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidClient
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, companyID, clientID)
	if err != nil {
		return domain.Payment{}, err
	}
	if client == nil {
		return domain.Payment{}, domain.ErrInvalidClient
	}

	var contractID *snowflake.ID
	if req.ContractID != nil && strings.TrimSpace(*req.ContractID) != "" {
		id, err := parseID(*req.ContractID)
		if err != nil {
			return domain.Payment{}, domain.ErrInvalidContract
		}
		contract, err := s.contractRepo.FindByID(ctx, s.db, companyID, id)
		if err != nil {
			return domain.Payment{}, err
		}
		if contract == nil || contract.ClientID != clientID {
			return domain.Payment{}, domain.ErrInvalidContract
		}
		contractID = &id
	}

	var dueDate *time.Time
	if req.DueDate != nil && strings.TrimSpace(*req.DueDate) != "" {
		parsed, err := time.ParseInLocation(dateLayout, strings.TrimSpace(*req.DueDate), time.UTC)
		if err != nil {
			return domain.Payment{}, domain.ErrInvalidDueDate
		}
		dueDate = &parsed
	}

	var gateway *string
	if req.PaymentGateway != nil && strings.TrimSpace(*req.PaymentGateway) != "" {
		gw, ok := gatewaydomain.Parse(*req.PaymentGateway)
		if !ok {
			return domain.Payment{}, domain.ErrInvalidGateway
		}
		value := gw.String()
		gateway = &value
	}

	txType := domain.TransactionTypeCharge
	if value := strings.TrimSpace(req.TransactionType); value != "" {
		parsed, ok := domain.ParseTransactionType(value)
		if !ok {
			return domain.Payment{}, domain.ErrInvalidTransactionType
		}
		txType = parsed
	}

	baseURL, err := s.companySvc.CheckoutBaseURL(ctx, companyID)
	if err != nil {
		return domain.Payment{}, err
	}

	now := s.clock.Now().UTC()
	payment := domain.Payment{
		ID:              s.genID.Generate(),
		CompanyID:       companyID,
		ClientID:        clientID,
		ContractID:      contractID,
		Amount:          req.Amount,
		DueDate:         dueDate,
		Status:          domain.StatusPending,
		PaymentGateway:  gateway,
		TransactionType: txType,
		Description:     trimOptional(req.Description),
		Metadata:        datatypes.JSONMap(req.Metadata),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if payment.Metadata == nil {
		payment.Metadata = datatypes.JSONMap{}
	}
	if contractID != nil && dueDate != nil {
		period := domain.Period(*dueDate)
		payment.Period = &period
	}
	checkoutURL := companydomain.CheckoutURL(baseURL, payment.ID)
	payment.CheckoutURL = &checkoutURL

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithCompany(tx, payment.CompanyID); err != nil {
			return err
		}
		if err := s.repo.Insert(ctx, tx, &payment); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return domain.ErrPeriodConflict
			}
			return err
		}
		return s.writeEvent(ctx, tx, &payment, eventdomain.EventPaymentCreated, nil)
	})
	if err != nil {
		return domain.Payment{}, err
	}

	s.audit(ctx, companyID, "payment.create", payment.ID, map[string]any{
		"amount":    payment.Amount,
		"client_id": payment.ClientID.String(),
	})
	return payment, nil
}

func (s *Service) List(ctx context.Context, req domain.ListPaymentRequest) (domain.ListPaymentResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ListPaymentResponse{}, domain.ErrInvalidCompany
	}

	filter := domain.ListFilter{Status: strings.TrimSpace(req.Status)}
	if filter.Status != "" {
		if _, ok := domain.ParseStatus(filter.Status); !ok {
			return domain.ListPaymentResponse{}, domain.ErrInvalidStatus
		}
	}
	if strings.TrimSpace(req.ClientID) != "" {
		id, err := parseID(req.ClientID)
		if err != nil {
			return domain.ListPaymentResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = id
	}
	if strings.TrimSpace(req.ContractID) != "" {
		id, err := parseID(req.ContractID)
		if err != nil {
			return domain.ListPaymentResponse{}, domain.ErrInvalidContract
		}
		filter.ContractID = id
	}

	items, err := s.repo.List(ctx, s.db, companyID, filter, req.Pagination)
	if err != nil {
		return domain.ListPaymentResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination, func(p *domain.Payment) string {
		return p.ID.String()
	})

	payments := make([]domain.Payment, 0, len(items))
	for _, item := range items {
		payments = append(payments, *item)
	}
	return domain.ListPaymentResponse{PageInfo: pageInfo, Payments: payments}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Payment, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Payment{}, domain.ErrInvalidCompany
	}
	paymentID, err := parseID(id)
	if err != nil {
		return domain.Payment{}, domain.ErrInvalidID
	}
	return s.Get(ctx, companyID, paymentID)
}

func (s *Service) Get(ctx context.Context, companyID, id snowflake.ID) (domain.Payment, error) {
	if companyID == 0 {
		return domain.Payment{}, domain.ErrInvalidCompany
	}
	item, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.Payment{}, err
	}
	if item == nil {
		return domain.Payment{}, domain.ErrNotFound
	}
	return *item, nil
}

// UpdateStatus is the operator path. It may move a charge anywhere except out of paid,
// which needs force unless the target is refunded.
func (s *Service) UpdateStatus(ctx context.Context, id string, req domain.UpdateStatusRequest) (domain.StatusChange, error) {
	target, ok := domain.ParseStatus(strings.TrimSpace(req.Status))
	if !ok {
		return domain.StatusChange{}, domain.ErrInvalidStatus
	}

	for attempt := 1; ; attempt++ {
		payment, err := s.GetByID(ctx, id)
		if err != nil {
			return domain.StatusChange{}, err
		}
		if !domain.ManualTransitionAllowed(payment.Status, target, req.Force) {
			return domain.StatusChange{}, domain.ErrPaidImmutable
		}

		change, err := s.transition(ctx, payment, target, sourceManual)
		if errors.Is(err, errStatusMoved) {
			if attempt < statusWriteAttempts {
				continue
			}
			return domain.StatusChange{}, domain.ErrStatusConflict
		}
		if err != nil {
			return domain.StatusChange{}, err
		}
		if change.Changed {
			s.audit(ctx, payment.CompanyID, "payment.status.update", payment.ID, map[string]any{
				"from":  string(change.Previous),
				"to":    string(target),
				"force": req.Force,
			})
		}
		return change, nil
	}
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Payment, error) {
	change, err := s.UpdateStatus(ctx, id, domain.UpdateStatusRequest{Status: string(domain.StatusCancelled)})
	if err != nil {
		return domain.Payment{}, err
	}
	return change.Payment, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	payment, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithCompany(tx, payment.CompanyID); err != nil {
			return err
		}
		if err := s.repo.Delete(ctx, tx, payment.CompanyID, payment.ID); err != nil {
			return err
		}
		return s.writeEvent(ctx, tx, &payment, eventdomain.EventPaymentDeleted, nil)
	})
	if err != nil {
		return err
	}

	s.audit(ctx, payment.CompanyID, "payment.delete", payment.ID, map[string]any{
		"status": string(payment.Status),
		"amount": payment.Amount,
	})
	return nil
}

func (s *Service) FindByExternalID(ctx context.Context, gateway, externalID string) (*domain.Payment, error) {
	gw, ok := gatewaydomain.Parse(gateway)
	if !ok {
		return nil, domain.ErrInvalidGateway
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return nil, domain.ErrInvalidExternalID
	}
	return s.repo.FindByExternalID(ctx, s.db, gw.String(), externalID)
}

func (s *Service) LinkGateway(ctx context.Context, companyID, id snowflake.ID, gateway, externalID string, checkoutURL *string) (domain.Payment, error) {
	gw, ok := gatewaydomain.Parse(gateway)
	if !ok {
		return domain.Payment{}, domain.ErrInvalidGateway
	}
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return domain.Payment{}, domain.ErrInvalidExternalID
	}

	payment, err := s.Get(ctx, companyID, id)
	if err != nil {
		return domain.Payment{}, err
	}

	gatewayName := gw.String()
	payment.PaymentGateway = &gatewayName
	payment.ExternalID = &externalID
	if url := trimOptional(checkoutURL); url != nil {
		payment.CheckoutURL = url
	}
	payment.UpdatedAt = s.clock.Now().UTC()

	if err := s.repo.UpdateGatewayLink(ctx, s.db, &payment); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.Payment{}, domain.ErrExternalIDConflict
		}
		return domain.Payment{}, err
	}
	return payment, nil
}

// ApplyGatewaySignal reconciles an authoritative gateway status through the status guard.
func (s *Service) ApplyGatewaySignal(ctx context.Context, companyID, id snowflake.ID, signal domain.Signal) (domain.StatusChange, error) {
	return s.applySignal(ctx, companyID, id, signal, sourceGateway)
}

// applySignal runs the status guard against the stored row and writes the
// result. When the row changes underneath, the guard runs again on a fresh read.
func (s *Service) applySignal(ctx context.Context, companyID, id snowflake.ID, signal domain.Signal, source string) (domain.StatusChange, error) {
	for attempt := 1; ; attempt++ {
		payment, err := s.Get(ctx, companyID, id)
		if err != nil {
			return domain.StatusChange{}, err
		}

		next, changed := domain.NextStatus(payment.Status, signal)
		if !changed {
			change := domain.StatusChange{
				Payment:   payment,
				Previous:  payment.Status,
				Preserved: domain.Preserved(payment.Status, signal),
			}
			if change.Preserved {
				s.log.Info("status preserved",
					zap.String("payment_id", payment.ID.String()),
					zap.String("status", string(payment.Status)),
					zap.String("signal", string(signal)),
					zap.String("source", source),
				)
			}
			return change, nil
		}

		change, err := s.transition(ctx, payment, next, source)
		if !errors.Is(err, errStatusMoved) {
			return change, err
		}
		if attempt >= statusWriteAttempts {
			return domain.StatusChange{}, domain.ErrStatusConflict
		}
		s.log.Debug("payment status moved concurrently, re-reading",
			zap.String("payment_id", payment.ID.String()),
			zap.String("signal", string(signal)),
			zap.Int("attempt", attempt),
		)
	}
}

// transition writes target only if the row still holds payment.Status, and
// returns errStatusMoved otherwise.
func (s *Service) transition(ctx context.Context, payment domain.Payment, target domain.Status, source string) (domain.StatusChange, error) {
	previous := payment.Status
	if previous == target {
		return domain.StatusChange{Payment: payment, Previous: previous}, nil
	}

	now := s.clock.Now().UTC()
	payment.Status = target
	payment.UpdatedAt = now
	switch {
	case target == domain.StatusPaid && payment.PaidAt == nil:
		payment.PaidAt = &now
	case target != domain.StatusPaid && target != domain.StatusRefunded:
		payment.PaidAt = nil
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithCompany(tx, payment.CompanyID); err != nil {
			return err
		}
		updated, err := s.repo.UpdateStatus(ctx, tx, &payment, previous)
		switch {
		case db.IsDuplicateKeyErr(err):
			return domain.ErrPeriodConflict
		case err != nil:
			return err
		case !updated:
			return errStatusMoved
		}
		return s.writeEvent(ctx, tx, &payment, eventdomain.EventPaymentStatusChanged, map[string]any{
			"from":   string(previous),
			"to":     string(target),
			"source": source,
		})
	})
	if err != nil {
		return domain.StatusChange{}, err
	}

	s.obsMetrics.RecordStatusChange(ctx, string(previous), string(target))
	s.log.Info("payment status changed",
		zap.String("payment_id", payment.ID.String()),
		zap.String("from", string(previous)),
		zap.String("to", string(target)),
		zap.String("source", source),
	)
	return domain.StatusChange{Payment: payment, Previous: previous, Changed: true}, nil
}

func (s *Service) writeEvent(ctx context.Context, tx *gorm.DB, payment *domain.Payment, eventType string, extra map[string]any) error {
	payload := datatypes.JSONMap{
		"status": string(payment.Status),
		"amount": payment.Amount,
	}
	if payment.DueDate != nil {
		payload["due_date"] = payment.DueDate.Format(dateLayout)
	}
	for key, value := range extra {
		payload[key] = value
	}
	return s.eventRepo.Insert(ctx, tx, &eventdomain.Event{
		ID:        s.genID.Generate(),
		CompanyID: payment.CompanyID,
		PaymentID: payment.ID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: s.clock.Now().UTC(),
	})
}

func (s *Service) audit(ctx context.Context, companyID snowflake.ID, action string, paymentID snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := paymentID.String()
	if err := s.auditSvc.AuditLog(ctx, &companyID, "", nil, action, "payment", &targetID, metadata); err != nil {
		s.log.Warn("failed to write payment audit log", zap.String("action", action), zap.Error(err))
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("zero id")
	}
	return id, nil
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

func wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
