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
	"github.com/smallbiznis/vehicleguard/internal/config"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/providers/whatsapp"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const defaultDispatchBatch = 100

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        *config.NotificationConfigHolder
	Repo          domain.Repository
	ClientRepo    clientdomain.Repository
	PaymentRepo   paymentdomain.Repository
	CompanySvc    companydomain.Service
	CredentialSvc credentialdomain.Service
	Provider      whatsapp.Provider
	AuditSvc      auditdomain.Service            `optional:"true"`
	Limiter       *ratelimit.NotificationLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics            `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	config        *config.NotificationConfigHolder
	repo          domain.Repository
	clientRepo    clientdomain.Repository
	paymentRepo   paymentdomain.Repository
	companySvc    companydomain.Service
	credentialSvc credentialdomain.Service
	provider      whatsapp.Provider
	auditSvc      auditdomain.Service
	limiter       *ratelimit.NotificationLimiter
	obsMetrics    *obsmetrics.Metrics
	renderer      *renderer
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("notification.service"),
		genID:         p.GenID,
		clock:         clk,
		config:        p.Config,
		repo:          p.Repo,
		clientRepo:    p.ClientRepo,
		paymentRepo:   p.PaymentRepo,
		companySvc:    p.CompanySvc,
		credentialSvc: p.CredentialSvc,
		provider:      p.Provider,
		auditSvc:      p.AuditSvc,
		limiter:       p.Limiter,
		obsMetrics:    p.ObsMetrics,
		renderer:      newRenderer(),
	}
}

func (s *Service) List(ctx context.Context, req domain.ListNotificationRequest) (domain.ListNotificationResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.ListNotificationResponse{}, domain.ErrInvalidCompany
	}

	filter := domain.ListFilter{
		Status:    strings.TrimSpace(req.Status),
		EventType: strings.TrimSpace(req.EventType),
	}
	if filter.Status != "" {
		if _, ok := domain.ParseStatus(filter.Status); !ok {
			return domain.ListNotificationResponse{}, domain.ErrInvalidStatus
		}
	}
	if filter.EventType != "" {
		if _, ok := domain.ParseEventType(filter.EventType); !ok {
			return domain.ListNotificationResponse{}, domain.ErrInvalidEventType
		}
	}
	if strings.TrimSpace(req.ClientID) != "" {
		id, err := parseID(req.ClientID)
		if err != nil {
			return domain.ListNotificationResponse{}, domain.ErrInvalidClient
		}
		filter.ClientID = &id
	}
	if strings.TrimSpace(req.PaymentID) != "" {
		id, err := parseID(req.PaymentID)
		if err != nil {
			return domain.ListNotificationResponse{}, domain.ErrInvalidPayment
		}
		filter.PaymentID = &id
	}

	items, err := s.repo.List(ctx, s.db, companyID, filter, req.Pagination)
	if err != nil {
		return domain.ListNotificationResponse{}, err
	}
	items, pageInfo := pagination.Trim(items, req.Pagination, func(n *domain.Notification) string {
		return n.ID.String()
	})
	out := make([]domain.Notification, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return domain.ListNotificationResponse{PageInfo: pageInfo, Notifications: out}, nil
}

func (s *Service) Get(ctx context.Context, companyID, id snowflake.ID) (domain.Notification, error) {
	n, err := s.repo.FindByID(ctx, s.db, companyID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n == nil {
		return domain.Notification{}, domain.ErrNotFound
	}
	return *n, nil
}

// Schedule stores a pending notification to be sent by the dispatch job.
func (s *Service) Schedule(ctx context.Context, req domain.ScheduleRequest) (domain.Notification, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Notification{}, domain.ErrInvalidCompany
	}
	now := s.clock.Now().UTC()
	if req.ScheduledFor == nil || !req.ScheduledFor.After(now) {
		return domain.Notification{}, domain.ErrInvalidSchedule
	}

	n, err := s.prepare(ctx, companyID, req, req.ScheduledFor.UTC())
	if err != nil {
		return domain.Notification{}, err
	}
	if err := s.insert(ctx, &n); err != nil {
		return domain.Notification{}, err
	}

	s.audit(ctx, companyID, "notification.schedule", n.ID, map[string]any{
		"event_type":    string(n.EventType),
		"scheduled_for": n.ScheduledFor.Format(time.RFC3339),
	})
	return n, nil
}

// SendNow stores the notification and sends it immediately. Provider failures are recorded
// on the returned row; a rate-limited send stays pending for the dispatch job.
func (s *Service) SendNow(ctx context.Context, req domain.ScheduleRequest) (domain.Notification, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.Notification{}, domain.ErrInvalidCompany
	}

	n, err := s.prepare(ctx, companyID, req, s.clock.Now().UTC())
	if err != nil {
		return domain.Notification{}, err
	}
	if err := s.insert(ctx, &n); err != nil {
		return domain.Notification{}, err
	}
	if err := s.deliver(ctx, &n); err != nil && !errors.Is(err, domain.ErrRateLimited) {
		return domain.Notification{}, err
	}

	s.audit(ctx, companyID, "notification.send", n.ID, map[string]any{
		"event_type": string(n.EventType),
		"status":     string(n.Status),
	})
	return n, nil
}

// Dispatch sends one pending notification on operator request.
func (s *Service) Dispatch(ctx context.Context, companyID, id snowflake.ID) (domain.Notification, error) {
	n, err := s.Get(ctx, companyID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n.Status != domain.StatusPending {
		return domain.Notification{}, domain.ErrInvalidTransition
	}
	if err := s.deliver(ctx, &n); err != nil {
		return domain.Notification{}, err
	}

	s.audit(ctx, companyID, "notification.send", n.ID, map[string]any{
		"event_type": string(n.EventType),
		"status":     string(n.Status),
	})
	return n, nil
}

// DispatchDue sends every pending notification scheduled up to now. One failing row never
// stops the rest of the batch.
func (s *Service) DispatchDue(ctx context.Context, now time.Time, limit int) (domain.DispatchSummary, error) {
	if limit <= 0 {
		limit = defaultDispatchBatch
	}
	items, err := s.repo.ListDue(ctx, s.db, now.UTC(), limit)
	if err != nil {
		return domain.DispatchSummary{}, err
	}

	var summary domain.DispatchSummary
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Processed++

		err := s.deliver(ctx, item)
		switch {
		case errors.Is(err, domain.ErrRateLimited):
			summary.RateLimited++
			continue
		case err != nil:
			s.log.Error("notification dispatch failed",
				zap.String("notification_id", item.ID.String()),
				zap.String("company_id", item.CompanyID.String()),
				zap.Error(err),
			)
			summary.Failed++
			continue
		}

		switch item.Status {
		case domain.StatusSent:
			summary.Sent++
		case domain.StatusSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
	}

	if summary.Processed > 0 {
		s.log.Info("notification dispatch completed",
			zap.Int("processed", summary.Processed),
			zap.Int("sent", summary.Sent),
			zap.Int("failed", summary.Failed),
			zap.Int("skipped", summary.Skipped),
			zap.Int("rate_limited", summary.RateLimited),
		)
	}
	return summary, nil
}

// Resend puts a notification back in the queue with a fresh attempt count.
func (s *Service) Resend(ctx context.Context, companyID, id snowflake.ID) (domain.Notification, error) {
	n, err := s.Get(ctx, companyID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	previous := n.Status

	now := s.clock.Now().UTC()
	n.Status = domain.StatusPending
	n.Attempts = 0
	n.LastError = nil
	n.SentAt = nil
	n.ScheduledFor = now
	n.UpdatedAt = now
	if err := s.repo.Update(ctx, s.db, &n); err != nil {
		return domain.Notification{}, err
	}

	s.audit(ctx, companyID, "notification.resend", n.ID, map[string]any{
		"previous_status": string(previous),
	})
	return n, nil
}

func (s *Service) Skip(ctx context.Context, companyID, id snowflake.ID) (domain.Notification, error) {
	n, err := s.Get(ctx, companyID, id)
	if err != nil {
		return domain.Notification{}, err
	}
	if n.Status == domain.StatusSkipped {
		return n, nil
	}
	previous := n.Status

	n.Status = domain.StatusSkipped
	n.UpdatedAt = s.clock.Now().UTC()
	if err := s.repo.Update(ctx, s.db, &n); err != nil {
		return domain.Notification{}, err
	}

	s.audit(ctx, companyID, "notification.skip", n.ID, map[string]any{
		"previous_status": string(previous),
	})
	return n, nil
}

func (s *Service) prepare(ctx context.Context, companyID snowflake.ID, req domain.ScheduleRequest, scheduledFor time.Time) (domain.Notification, error) {
	eventType, ok := domain.ParseEventType(strings.TrimSpace(req.EventType))
	if !ok {
		return domain.Notification{}, domain.ErrInvalidEventType
	}
	clientID, err := parseID(req.ClientID)
	if err != nil {
		return domain.Notification{}, domain.ErrInvalidClient
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, companyID, clientID)
	if err != nil {
		return domain.Notification{}, err
	}
	if client == nil {
		return domain.Notification{}, domain.ErrInvalidClient
	}

	var payment *paymentdomain.Payment
	if req.PaymentID != nil && strings.TrimSpace(*req.PaymentID) != "" {
		paymentID, err := parseID(*req.PaymentID)
		if err != nil {
			return domain.Notification{}, domain.ErrInvalidPayment
		}
		payment, err = s.paymentRepo.FindByID(ctx, s.db, companyID, paymentID)
		if err != nil {
			return domain.Notification{}, err
		}
		if payment == nil || payment.ClientID != clientID {
			return domain.Notification{}, domain.ErrInvalidPayment
		}
	}
	if payment == nil && eventType != domain.EventManual {
		return domain.Notification{}, domain.ErrInvalidPayment
	}

	message := ""
	if req.Message != nil {
		message = strings.TrimSpace(*req.Message)
	}
	if eventType == domain.EventManual && message == "" {
		return domain.Notification{}, domain.ErrInvalidMessage
	}

	cfg := s.config.Get()
	body, err := s.render(ctx, cfg, eventType, *client, payment, message)
	if err != nil {
		return domain.Notification{}, err
	}

	now := s.clock.Now().UTC()
	n := domain.Notification{
		ID:           s.genID.Generate(),
		CompanyID:    companyID,
		ClientID:     clientID,
		EventType:    eventType,
		OffsetDays:   offsetFor(cfg, eventType),
		ScheduledFor: scheduledFor,
		Status:       domain.StatusPending,
		MessageBody:  body,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if payment != nil {
		id := payment.ID
		n.PaymentID = &id
	}
	return n, nil
}

func (s *Service) insert(ctx context.Context, n *domain.Notification) error {
	if n.PaymentID == nil || n.EventType == domain.EventManual {
		return s.repo.Insert(ctx, s.db, n)
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, n)
	if err != nil {
		return err
	}
	if !inserted {
		return fmt.Errorf("%s for payment %s: %w", n.EventType, n.PaymentID.String(), domain.ErrAlreadyScheduled)
	}
	return nil
}

func (s *Service) render(ctx context.Context, cfg config.NotificationConfig, eventType domain.EventType, client clientdomain.Client, payment *paymentdomain.Payment, message string) (string, error) {
	data := MessageData{
		ClientName: client.Name,
		Message:    message,
	}
	company, err := s.companySvc.Get(ctx, client.CompanyID)
	if err != nil {
		return "", err
	}
	data.CompanyName = company.Name
	if payment != nil {
		data.Amount = paymentdomain.FormatBRL(payment.Amount)
		if payment.DueDate != nil {
			data.DueDate = payment.DueDate.Format(dueDateLayout)
		}
		if payment.CheckoutURL != nil {
			data.CheckoutURL = *payment.CheckoutURL
		}
	}
	return s.renderer.render(cfg.Templates, eventType, data)
}

func (s *Service) audit(ctx context.Context, companyID snowflake.ID, action string, id snowflake.ID, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	targetID := id.String()
	if err := s.auditSvc.AuditLog(ctx, &companyID, "", nil, action, "notification", &targetID, metadata); err != nil {
		s.log.Warn("failed to write notification audit log", zap.String("action", action), zap.Error(err))
	}
}

func offsetFor(cfg config.NotificationConfig, eventType domain.EventType) int {
	switch eventType {
	case domain.EventPreDue:
		return cfg.Offsets.PreDue
	case domain.EventOnDue:
		return cfg.Offsets.OnDue
	case domain.EventPostDue:
		return cfg.Offsets.PostDue
	default:
		return 0
	}
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
