package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/gateway/adapters"
	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Config        config.Config
	Registry      *adapters.Registry
	CredentialSvc credentialdomain.Service
	PaymentSvc    paymentdomain.Service
	ClientRepo    clientdomain.Repository
	AuditSvc      auditdomain.Service `optional:"true"`
	HTTPClient    *http.Client        `name:"gateway_http_client" optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	appBaseURL    string
	registry      *adapters.Registry
	credentialSvc credentialdomain.Service
	paymentSvc    paymentdomain.Service
	clientRepo    clientdomain.Repository
	auditSvc      auditdomain.Service
	httpClient    *http.Client
	validate      *validator.Validate
}

func New(p Params) domain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("gateway.service"),
		appBaseURL:    strings.TrimRight(p.Config.AppBaseURL, "/"),
		registry:      p.Registry,
		credentialSvc: p.CredentialSvc,
		paymentSvc:    p.PaymentSvc,
		clientRepo:    p.ClientRepo,
		auditSvc:      p.AuditSvc,
		httpClient:    p.HTTPClient,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (s *Service) ParseWebhook(gatewayName string, delivery domain.Delivery) ([]domain.Notification, error) {
	factory, err := s.registry.Factory(gatewayName)
	if err != nil {
		return nil, err
	}
	return factory.ParseWebhook(delivery)
}

// Adapter decrypts the company's credentials just in time and builds an adapter.
// A "base_url" credential field overrides the gateway endpoint.
func (s *Service) Adapter(ctx context.Context, companyID snowflake.ID, gw domain.Gateway) (domain.Adapter, error) {
	secrets, err := s.credentialSvc.Resolve(ctx, companyID, credentialdomain.Provider(gw))
	if err != nil {
		return nil, fmt.Errorf("resolve %s credentials: %w", gw, err)
	}
	return s.registry.NewAdapter(gw.String(), domain.Config{
		CompanyID:  companyID,
		Secrets:    secrets,
		HTTPClient: s.httpClient,
		BaseURL:    secrets.String("base_url"),
	})
}

func (s *Service) Invoke(ctx context.Context, gatewayName string, env domain.Envelope) (domain.InvokeResult, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return domain.InvokeResult{}, domain.ErrInvalidCompany
	}
	gw, ok := domain.Parse(gatewayName)
	if !ok {
		return domain.InvokeResult{}, domain.ErrUnknownGateway
	}
	if err := s.validateEnvelope(env); err != nil {
		return domain.InvokeResult{}, err
	}
	if env.CompanyID != "" && env.CompanyID != companyID.String() {
		return domain.InvokeResult{}, domain.ErrCompanyMismatch
	}

	adapter, err := s.Adapter(ctx, companyID, gw)
	if err != nil {
		return domain.InvokeResult{}, err
	}

	var result domain.InvokeResult
	switch env.Action {
	case domain.ActionCreateCharge:
		result, err = s.createCharge(ctx, companyID, gw, adapter, env.Data)
	case domain.ActionGetCharge:
		var charge domain.Charge
		charge, err = adapter.GetCharge(ctx, env.Data.ExternalID)
		result = domain.InvokeResult{Charge: charge}
	case domain.ActionCancelCharge:
		result, err = s.cancelCharge(ctx, companyID, gw, adapter, env.Data.ExternalID)
	default:
		err = domain.ErrUnsupported
	}

	s.audit(ctx, companyID, gw, env.Action, result, err)
	if err != nil {
		return domain.InvokeResult{}, err
	}
	result.Action = env.Action
	result.Gateway = gw
	return result, nil
}

func (s *Service) createCharge(ctx context.Context, companyID snowflake.ID, gw domain.Gateway, adapter domain.Adapter, data domain.InvokeData) (domain.InvokeResult, error) {
	req := domain.CreateChargeRequest{
		Amount:          data.Amount,
		Description:     data.Description,
		NotificationURL: s.notificationURL(gw, companyID),
	}
	if data.DueDate != "" {
		due, err := time.Parse(dateLayout, data.DueDate)
		if err != nil {
			return domain.InvokeResult{}, invalidField("data.due_date", "datetime")
		}
		req.DueDate = due
	}
	if data.Customer != nil {
		req.Customer = domain.Customer(*data.Customer)
	}

	var payment *paymentdomain.Payment
	if data.PaymentID != "" {
		id, err := snowflake.ParseString(data.PaymentID)
		if err != nil {
			return domain.InvokeResult{}, invalidField("data.payment_id", "numeric")
		}
		loaded, err := s.paymentSvc.Get(ctx, companyID, id)
		if err != nil {
			return domain.InvokeResult{}, err
		}
		payment = &loaded
		req.PaymentID = loaded.ID
		if req.Amount == 0 {
			req.Amount = loaded.Amount
		}
		if req.DueDate.IsZero() && loaded.DueDate != nil {
			req.DueDate = *loaded.DueDate
		}
		if req.Description == "" && loaded.Description != nil {
			req.Description = *loaded.Description
		}
		if data.Customer == nil {
			customer, err := s.customerFor(ctx, companyID, loaded.ClientID)
			if err != nil {
				return domain.InvokeResult{}, err
			}
			req.Customer = customer
		}
	}
	if req.Amount <= 0 {
		return domain.InvokeResult{}, invalidField("data.amount", "required")
	}
	if strings.TrimSpace(req.Customer.Name) == "" {
		return domain.InvokeResult{}, invalidField("data.customer", "required")
	}

	charge, err := adapter.CreateCharge(ctx, req)
	if err != nil {
		return domain.InvokeResult{}, err
	}

	result := domain.InvokeResult{Charge: charge}
	if payment != nil && charge.ExternalID != "" {
		var checkoutURL *string
		if charge.CheckoutURL != "" {
			checkoutURL = &charge.CheckoutURL
		}
		linked, err := s.paymentSvc.LinkGateway(ctx, companyID, payment.ID, gw.String(), charge.ExternalID, checkoutURL)
		if err != nil {
			return domain.InvokeResult{}, fmt.Errorf("link charge %s: %w", charge.ExternalID, err)
		}
		result.Payment = &linked
	}
	return result, nil
}

// cancelCharge also reconciles the linked payment; the status guard keeps paid charges paid.
func (s *Service) cancelCharge(ctx context.Context, companyID snowflake.ID, gw domain.Gateway, adapter domain.Adapter, externalID string) (domain.InvokeResult, error) {
	charge, err := adapter.CancelCharge(ctx, externalID)
	if err != nil {
		return domain.InvokeResult{}, err
	}
	result := domain.InvokeResult{Charge: charge}

	payment, err := s.paymentSvc.FindByExternalID(ctx, gw.String(), externalID)
	if err != nil {
		return domain.InvokeResult{}, err
	}
	if payment == nil || payment.CompanyID != companyID {
		return result, nil
	}
	change, err := s.paymentSvc.ApplyGatewaySignal(ctx, companyID, payment.ID, charge.Signal)
	if err != nil {
		return domain.InvokeResult{}, err
	}
	result.Payment = &change.Payment
	return result, nil
}

func (s *Service) customerFor(ctx context.Context, companyID, clientID snowflake.ID) (domain.Customer, error) {
	client, err := s.clientRepo.FindByID(ctx, s.db, companyID, clientID)
	if err != nil {
		return domain.Customer{}, err
	}
	if client == nil {
		return domain.Customer{}, paymentdomain.ErrInvalidClient
	}
	customer := domain.Customer{Name: client.Name}
	if client.Document != nil {
		customer.Document = *client.Document
	}
	if client.Email != nil {
		customer.Email = *client.Email
	}
	if client.Phone != nil {
		customer.Phone = *client.Phone
	}
	return customer, nil
}

func (s *Service) notificationURL(gw domain.Gateway, companyID snowflake.ID) string {
	if s.appBaseURL == "" {
		return ""
	}
	query := url.Values{}
	query.Set("company_id", companyID.String())
	return s.appBaseURL + "/api/webhooks/" + gw.String() + "?" + query.Encode()
}

func (s *Service) validateEnvelope(env domain.Envelope) error {
	if err := s.validate.Struct(env); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return domain.ErrInvalidEnvelope
		}
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Namespace()] = fe.Tag()
		}
		return &domain.ValidationError{Fields: fields}
	}
	switch env.Action {
	case domain.ActionGetCharge, domain.ActionCancelCharge:
		if strings.TrimSpace(env.Data.ExternalID) == "" {
			return invalidField("data.external_id", "required")
		}
	case domain.ActionCreateCharge:
		if env.Data.PaymentID == "" && env.Data.Amount == 0 {
			return invalidField("data.amount", "required_without=payment_id")
		}
	}
	return nil
}

func (s *Service) audit(ctx context.Context, companyID snowflake.ID, gw domain.Gateway, action string, result domain.InvokeResult, invokeErr error) {
	if s.auditSvc == nil {
		return
	}
	metadata := map[string]any{
		"gateway": gw.String(),
		"action":  action,
	}
	if result.Charge.ExternalID != "" {
		metadata["external_id"] = result.Charge.ExternalID
		metadata["gateway_status"] = result.Charge.RawStatus
	}
	if invokeErr != nil {
		metadata["error"] = invokeErr.Error()
		var upstream *domain.UpstreamError
		if errors.As(invokeErr, &upstream) {
			metadata["upstream_status"] = upstream.StatusCode
			metadata["upstream_body"] = upstream.Body
		}
	}
	var targetID *string
	if result.Charge.ExternalID != "" {
		targetID = &result.Charge.ExternalID
	}
	if err := s.auditSvc.AuditLog(ctx, &companyID, "", nil, "gateway."+action, "gateway_charge", targetID, metadata); err != nil {
		s.log.Warn("failed to write gateway audit log", zap.Error(err))
	}
}

func invalidField(field, tag string) error {
	return &domain.ValidationError{Fields: map[string]string{field: tag}}
}
