package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/authorization"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/config"
	contractdomain "github.com/smallbiznis/vehicleguard/internal/contract/domain"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
	"github.com/smallbiznis/vehicleguard/internal/observability"
	obsmiddleware "github.com/smallbiznis/vehicleguard/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/vehicleguard/internal/observability/metrics"
	obstracing "github.com/smallbiznis/vehicleguard/internal/observability/tracing"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/internal/payment/webhook"
	"github.com/smallbiznis/vehicleguard/internal/paymentevents"
	plandomain "github.com/smallbiznis/vehicleguard/internal/plan/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(s *Server) { s.RegisterRoutes() }),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		QuietRoutes:     obsCfg.Log.QuietRoutes,
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	if httpMetrics != nil {
		r.Use(httpMetrics.GinMiddleware())
	}
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.String("addr", addr), zap.Error(err))
				}
			}()
			log.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// webhookReceiver is satisfied by *webhook.Service.
type webhookReceiver interface {
	Receive(ctx context.Context, gatewayName string, delivery gatewaydomain.Delivery) []webhook.ItemResult
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	log             *zap.Logger
	apiKeySvc       apikeydomain.Service
	authzSvc        authorization.Service
	auditSvc        auditdomain.Service
	companySvc      companydomain.Service
	clientSvc       clientdomain.Service
	planSvc         plandomain.Service
	contractSvc     contractdomain.Service
	paymentSvc      paymentdomain.Service
	webhookSvc      webhookReceiver
	gatewaySvc      gatewaydomain.Service
	credentialSvc   credentialdomain.Service
	notificationSvc notificationdomain.Service
	paymentEvents   *paymentevents.Hub
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	Log             *zap.Logger
	APIKeySvc       apikeydomain.Service
	AuthzSvc        authorization.Service
	AuditSvc        auditdomain.Service
	CompanySvc      companydomain.Service
	ClientSvc       clientdomain.Service
	PlanSvc         plandomain.Service
	ContractSvc     contractdomain.Service
	PaymentSvc      paymentdomain.Service
	WebhookSvc      *webhook.Service
	GatewaySvc      gatewaydomain.Service
	CredentialSvc   credentialdomain.Service
	NotificationSvc notificationdomain.Service
	PaymentEvents   *paymentevents.Hub `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		log:             p.Log.Named("http.server"),
		apiKeySvc:       p.APIKeySvc,
		authzSvc:        p.AuthzSvc,
		auditSvc:        p.AuditSvc,
		companySvc:      p.CompanySvc,
		clientSvc:       p.ClientSvc,
		planSvc:         p.PlanSvc,
		contractSvc:     p.ContractSvc,
		paymentSvc:      p.PaymentSvc,
		webhookSvc:      p.WebhookSvc,
		gatewaySvc:      p.GatewaySvc,
		credentialSvc:   p.CredentialSvc,
		notificationSvc: p.NotificationSvc,
		paymentEvents:   p.PaymentEvents,
	}
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) RegisterRoutes() {
	api := s.engine.Group("/api")

	// -------- Gateway Webhooks --------
	api.POST("/webhooks/:gateway", s.ReceiveGatewayWebhook)

	authed := api.Group("", s.APIKeyRequired())

	// -------- Company --------
	authed.GET("/company", s.authorizeAction(authorization.ObjectCompany, authorization.ActionCompanyView), s.GetCompany)
	authed.PATCH("/company", s.authorizeAction(authorization.ObjectCompany, authorization.ActionCompanyUpdate), s.UpdateCompany)

	// -------- Clients --------
	authed.GET("/clients", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientView), s.ListClients)
	authed.POST("/clients", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientCreate), s.CreateClient)
	authed.GET("/clients/:id", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientView), s.GetClientByID)
	authed.PATCH("/clients/:id", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientUpdate), s.UpdateClient)

	// -------- Plans --------
	authed.GET("/plans", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanView), s.ListPlans)
	authed.POST("/plans", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanCreate), s.CreatePlan)
	authed.GET("/plans/:id", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanView), s.GetPlanByID)
	authed.PATCH("/plans/:id", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanUpdate), s.UpdatePlan)

	// -------- Contracts --------
	authed.GET("/contracts", s.authorizeAction(authorization.ObjectContract, authorization.ActionContractView), s.ListContracts)
	authed.POST("/contracts", s.authorizeAction(authorization.ObjectContract, authorization.ActionContractCreate), s.CreateContract)
	authed.GET("/contracts/:id", s.authorizeAction(authorization.ObjectContract, authorization.ActionContractView), s.GetContractByID)
	authed.PATCH("/contracts/:id", s.authorizeAction(authorization.ObjectContract, authorization.ActionContractUpdate), s.UpdateContract)

	// -------- Payments --------
	authed.GET("/payments", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.ListPayments)
	authed.POST("/payments", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentCreate), s.CreatePayment)
	authed.GET("/payments/stream", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.StreamPaymentEvents)
	authed.POST("/payments/backfill", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentBackfill), s.BackfillPayments)
	authed.GET("/payments/:id", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.GetPaymentByID)
	authed.PATCH("/payments/:id/status", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentStatus), s.UpdatePaymentStatus)
	authed.POST("/payments/:id/cancel", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentCancel), s.CancelPayment)
	authed.DELETE("/payments/:id", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentDelete), s.DeletePayment)
	authed.POST("/payments/:id/next-charge", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentGenerate), s.GenerateNextCharge)
	authed.GET("/payments/:id/receipt", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentView), s.GetPaymentReceipt)

	// -------- Gateways --------
	authed.POST("/gateways/:gateway/invoke", s.authorizeAction(authorization.ObjectGateway, authorization.ActionGatewayInvoke), s.InvokeGateway)

	// -------- Credentials --------
	authed.GET("/credentials", s.authorizeAction(authorization.ObjectCredential, authorization.ActionCredentialView), s.ListCredentials)
	authed.GET("/credentials/:provider", s.authorizeAction(authorization.ObjectCredential, authorization.ActionCredentialView), s.GetCredential)
	authed.PUT("/credentials/:provider", s.authorizeAction(authorization.ObjectCredential, authorization.ActionCredentialManage), s.UpsertCredential)
	authed.PATCH("/credentials/:provider", s.authorizeAction(authorization.ObjectCredential, authorization.ActionCredentialManage), s.SetCredentialActive)
	authed.DELETE("/credentials/:provider", s.authorizeAction(authorization.ObjectCredential, authorization.ActionCredentialManage), s.DeleteCredential)

	// -------- Notifications --------
	authed.GET("/notifications", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationView), s.ListNotifications)
	authed.POST("/notifications", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationSchedule), s.CreateNotification)
	authed.GET("/notifications/:id", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationView), s.GetNotification)
	authed.POST("/notifications/:id/send", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationSend), s.SendNotification)
	authed.POST("/notifications/:id/resend", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationSend), s.ResendNotification)
	authed.POST("/notifications/:id/skip", s.authorizeAction(authorization.ObjectNotification, authorization.ActionNotificationSchedule), s.SkipNotification)

	// -------- Audit Logs --------
	authed.GET("/audit-logs", s.authorizeAction(authorization.ObjectAuditLog, authorization.ActionAuditLogView), s.ListAuditLogs)

	// -------- API Keys --------
	authed.GET("/api-keys", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyView), s.ListAPIKeys)
	authed.POST("/api-keys", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyCreate), s.CreateAPIKey)
	authed.POST("/api-keys/:key_id/rotate", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRotate), s.RotateAPIKey)
	authed.DELETE("/api-keys/:key_id", s.authorizeAction(authorization.ObjectAPIKey, authorization.ActionAPIKeyRevoke), s.RevokeAPIKey)
}
