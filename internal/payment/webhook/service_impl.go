package webhook

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/auditcontext"
	"github.com/smallbiznis/vehicleguard/internal/clock"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxAuditBody = 16 << 10

// PaidNotifier schedules the confirmation message after a charge becomes paid.
type PaidNotifier interface {
	NotifyPaid(ctx context.Context, payment paymentdomain.Payment) error
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PaymentSvc paymentdomain.Service
	GatewaySvc gatewaydomain.Service
	AuditSvc   auditdomain.Service
	Notifier   PaidNotifier        `optional:"true"`
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       Repository
	paymentSvc paymentdomain.Service
	gatewaySvc gatewaydomain.Service
	auditSvc   auditdomain.Service
	notifier   PaidNotifier
	obsMetrics *obsmetrics.Metrics
}

// ItemResult is the outcome for one notification of a delivery.
type ItemResult struct {
	DeliveryID     string  `json:"delivery_id"`
	ExternalID     string  `json:"external_id,omitempty"`
	Outcome        Outcome `json:"outcome"`
	PreviousStatus string  `json:"previous_status,omitempty"`
	ResolvedStatus string  `json:"resolved_status,omitempty"`
	Error          string  `json:"error,omitempty"`

	companyID *snowflake.ID
}

func NewService(p Params) *Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.SystemClock{}
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      clk,
		repo:       ProvideRepository(),
		paymentSvc: p.PaymentSvc,
		gatewaySvc: p.GatewaySvc,
		auditSvc:   p.AuditSvc,
		notifier:   p.Notifier,
		obsMetrics: p.ObsMetrics,
	}
}

// Receive reconciles every charge a webhook refers to. It never fails: gateways retry
// on errors, so problems are recorded per item and the caller always acknowledges.
func (s *Service) Receive(ctx context.Context, gatewayName string, delivery gatewaydomain.Delivery) []ItemResult {
	gatewayName = strings.ToLower(strings.TrimSpace(gatewayName))
	ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeGateway, gatewayName)

	notifications, err := s.gatewaySvc.ParseWebhook(gatewayName, delivery)
	if err != nil {
		item := ItemResult{Outcome: parseOutcome(err), Error: err.Error()}
		return []ItemResult{s.finish(ctx, gatewayName, delivery, item)}
	}

	results := make([]ItemResult, 0, len(notifications))
	for _, notification := range notifications {
		item := s.process(ctx, gatewaydomain.Gateway(gatewayName), delivery, notification)
		results = append(results, s.finish(ctx, gatewayName, delivery, item))
	}
	return results
}

func (s *Service) process(ctx context.Context, gw gatewaydomain.Gateway, delivery gatewaydomain.Delivery, n gatewaydomain.Notification) ItemResult {
	item := ItemResult{ExternalID: n.ExternalID}

	if item.ExternalID == "" && n.Token != "" {
		externalID, err := s.resolveToken(ctx, gw, delivery, n.Token)
		if err != nil {
			item.Outcome = OutcomeInvalidPayload
			if errors.Is(err, gatewaydomain.ErrInvalidConfig) || isCredentialErr(err) {
				item.Outcome = OutcomeCredentialsError
			}
			item.Error = err.Error()
			return item
		}
		item.ExternalID = externalID
	}
	if item.ExternalID == "" {
		item.Outcome = OutcomeInvalidPayload
		return item
	}

	payment, err := s.paymentSvc.FindByExternalID(ctx, gw.String(), item.ExternalID)
	if err != nil {
		item.Outcome = OutcomeError
		item.Error = err.Error()
		return item
	}
	if payment == nil {
		item.Outcome = OutcomeNotFound
		return item
	}
	companyID := payment.CompanyID
	item.companyID = &companyID
	item.PreviousStatus = string(payment.Status)
	ctx = auditcontext.WithPaymentID(ctx, payment.ID.String())

	adapter, err := s.gatewaySvc.Adapter(ctx, companyID, gw)
	if err != nil {
		item.Outcome = OutcomeCredentialsError
		item.Error = err.Error()
		return item
	}
	if err := adapter.Verify(delivery); err != nil {
		item.Outcome = OutcomeInvalidSignature
		item.Error = err.Error()
		return item
	}

	charge, err := adapter.GetCharge(ctx, item.ExternalID)
	if err != nil {
		item.Outcome = OutcomeGatewayError
		item.Error = err.Error()
		return item
	}

	change, err := s.paymentSvc.ApplyGatewaySignal(ctx, companyID, payment.ID, charge.Signal)
	if err != nil {
		item.Outcome = OutcomeError
		item.Error = err.Error()
		return item
	}
	item.ResolvedStatus = string(change.Payment.Status)
	switch {
	case change.Changed:
		item.Outcome = OutcomeApplied
	case change.Preserved:
		item.Outcome = OutcomePreserved
	default:
		item.Outcome = OutcomeUnchanged
	}

	if change.Changed && change.Payment.Status == paymentdomain.StatusPaid {
		s.afterPaid(ctx, change.Payment)
	}
	return item
}

// afterPaid runs the follow-ups of a paid transition. Failures are logged only;
// both follow-ups are idempotent and can be replayed by the backfill job or an operator.
func (s *Service) afterPaid(ctx context.Context, payment paymentdomain.Payment) {
	result, err := s.paymentSvc.GenerateNextCharge(ctx, payment.CompanyID, payment.ID)
	if err != nil {
		s.log.Error("next charge generation after webhook failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	} else {
		s.log.Info("next charge evaluated",
			zap.String("payment_id", payment.ID.String()),
			zap.Bool("created", result.Created),
			zap.String("reason", result.Reason),
		)
	}

	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyPaid(ctx, payment); err != nil {
		s.log.Warn("paid notification failed",
			zap.String("payment_id", payment.ID.String()),
			zap.Error(err),
		)
	}
}

// resolveToken handles gateways that only send a notification token. The company comes
// from the notification URL registered when the charge was created.
func (s *Service) resolveToken(ctx context.Context, gw gatewaydomain.Gateway, delivery gatewaydomain.Delivery, token string) (string, error) {
	companyID, err := snowflake.ParseString(strings.TrimSpace(delivery.Query.Get("company_id")))
	if err != nil || companyID == 0 {
		return "", gatewaydomain.ErrInvalidPayload
	}
	adapter, err := s.gatewaySvc.Adapter(ctx, companyID, gw)
	if err != nil {
		return "", err
	}
	resolver, ok := adapter.(gatewaydomain.NotificationResolver)
	if !ok {
		return "", gatewaydomain.ErrUnsupported
	}
	return resolver.ResolveNotification(ctx, token)
}

func (s *Service) finish(ctx context.Context, gatewayName string, delivery gatewaydomain.Delivery, item ItemResult) ItemResult {
	item.DeliveryID = ulid.Make().String()
	s.obsMetrics.RecordWebhookDelivery(ctx, gatewayName, string(item.Outcome))

	record := Delivery{
		ID:             s.genID.Generate(),
		CompanyID:      item.companyID,
		Gateway:        gatewayName,
		ExternalID:     optional(item.ExternalID),
		DeliveryID:     item.DeliveryID,
		Outcome:        item.Outcome,
		PreviousStatus: optional(item.PreviousStatus),
		ResolvedStatus: optional(item.ResolvedStatus),
		ReceivedAt:     s.clock.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, &record); err != nil {
		s.log.Warn("failed to record webhook delivery", zap.String("delivery_id", item.DeliveryID), zap.Error(err))
	}

	body := string(delivery.Body)
	if len(body) > maxAuditBody {
		body = body[:maxAuditBody]
	}
	metadata := map[string]any{
		"gateway":     gatewayName,
		"delivery_id": item.DeliveryID,
		"outcome":     string(item.Outcome),
		"raw_body":    body,
	}
	if item.Error != "" {
		metadata["error"] = item.Error
	}
	if item.PreviousStatus != "" {
		metadata["previous_status"] = item.PreviousStatus
	}
	if item.ResolvedStatus != "" {
		metadata["resolved_status"] = item.ResolvedStatus
	}
	if err := s.auditSvc.AuditLog(ctx, item.companyID, auditcontext.ActorTypeGateway, &gatewayName,
		"payment.webhook.received", "payment", optional(item.ExternalID), metadata); err != nil {
		s.log.Warn("failed to audit webhook delivery", zap.String("delivery_id", item.DeliveryID), zap.Error(err))
	}

	fields := []zap.Field{
		zap.String("gateway", gatewayName),
		zap.String("delivery_id", item.DeliveryID),
		zap.String("external_id", item.ExternalID),
		zap.String("outcome", string(item.Outcome)),
	}
	if item.Error != "" {
		s.log.Warn("webhook delivery not applied", append(fields, zap.String("error", item.Error))...)
	} else {
		s.log.Info("webhook delivery processed", fields...)
	}
	return item
}

func parseOutcome(err error) Outcome {
	switch {
	case errors.Is(err, gatewaydomain.ErrUnknownGateway):
		return OutcomeUnknownGateway
	case errors.Is(err, gatewaydomain.ErrEventIgnored):
		return OutcomeIgnored
	default:
		return OutcomeInvalidPayload
	}
}

func isCredentialErr(err error) bool {
	return errors.Is(err, credentialdomain.ErrNotFound) ||
		errors.Is(err, credentialdomain.ErrInactive) ||
		errors.Is(err, credentialdomain.ErrEncryptionKeyMissing) ||
		errors.Is(err, credentialdomain.ErrDecrypt)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
