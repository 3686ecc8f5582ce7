package authorization

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed model.conf
var modelText string

const (
	ObjectCompany      = "company"
	ObjectClient       = "client"
	ObjectPlan         = "plan"
	ObjectContract     = "contract"
	ObjectPayment      = "payment"
	ObjectGateway      = "gateway"
	ObjectCredential   = "credential"
	ObjectNotification = "notification"
	ObjectAuditLog     = "audit_log"
	ObjectAPIKey       = "api_key"
)

const (
	ActionCompanyView   = "company.view"
	ActionCompanyUpdate = "company.update"

	ActionClientView   = "client.view"
	ActionClientCreate = "client.create"
	ActionClientUpdate = "client.update"

	ActionPlanView   = "plan.view"
	ActionPlanCreate = "plan.create"
	ActionPlanUpdate = "plan.update"

	ActionContractView   = "contract.view"
	ActionContractCreate = "contract.create"
	ActionContractUpdate = "contract.update"

	ActionPaymentView     = "payment.view"
	ActionPaymentCreate   = "payment.create"
	ActionPaymentStatus   = "payment.status"
	ActionPaymentCancel   = "payment.cancel"
	ActionPaymentDelete   = "payment.delete"
	ActionPaymentGenerate = "payment.generate"
	ActionPaymentBackfill = "payment.backfill"

	ActionGatewayInvoke = "gateway.invoke"

	ActionCredentialView   = "credential.view"
	ActionCredentialManage = "credential.manage"

	ActionNotificationView     = "notification.view"
	ActionNotificationSchedule = "notification.schedule"
	ActionNotificationSend     = "notification.send"

	ActionAuditLogView = "audit_log.view"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyCreate = "api_key.create"
	ActionAPIKeyRotate = "api_key.rotate"
	ActionAPIKeyRevoke = "api_key.revoke"
)

const roleSystem = "role:system"

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	Enforcer *casbin.SyncedEnforcer
	AuditSvc auditdomain.Service `optional:"true"`
}

type ServiceImpl struct {
	db       *gorm.DB
	log      *zap.Logger
	enforcer *casbin.SyncedEnforcer
	auditSvc auditdomain.Service
}

func NewEnforcer(db *gorm.DB) (*casbin.SyncedEnforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, err
	}
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, err
	}
	enforcer, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, err
	}
	enforcer.EnableAutoSave(true)
	enforcer.EnableAutoBuildRoleLinks(true)
	if err := enforcer.LoadPolicy(); err != nil {
		return nil, err
	}
	if err := seedPolicies(enforcer); err != nil {
		return nil, err
	}
	if err := enforcer.BuildRoleLinks(); err != nil {
		return nil, err
	}
	return enforcer, nil
}

func NewService(p Params) Service {
	return &ServiceImpl{
		db:       p.DB,
		log:      p.Log.Named("authorization.service"),
		enforcer: p.Enforcer,
		auditSvc: p.AuditSvc,
	}
}

func (s *ServiceImpl) Authorize(ctx context.Context, actor string, companyID string, object string, action string) error {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return ErrInvalidActor
	}
	companyID = strings.TrimSpace(companyID)
	parsedCompanyID, err := snowflake.ParseString(companyID)
	if err != nil || parsedCompanyID == 0 {
		return ErrInvalidCompany
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return ErrInvalidObject
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return ErrInvalidAction
	}

	subject, roleName, actorType, actorID, err := s.resolveActor(ctx, actor, parsedCompanyID)
	if err != nil {
		s.auditDenied(ctx, actorType, actorID, parsedCompanyID, object, action)
		return err
	}

	domain := fmt.Sprintf("company:%s", parsedCompanyID.String())
	if err := s.ensureGrouping(subject, roleName, domain); err != nil {
		return err
	}

	allowed, err := s.enforcer.Enforce(subject, domain, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		s.auditDenied(ctx, actorType, actorID, parsedCompanyID, object, action)
		return ErrForbidden
	}

	if shouldAuditGrant(action) {
		s.auditGranted(ctx, actorType, actorID, parsedCompanyID, object, action)
	}
	return nil
}

func (s *ServiceImpl) resolveActor(ctx context.Context, actor string, companyID snowflake.ID) (string, string, string, *string, error) {
	if actor == "system" {
		return actor, roleSystem, "system", nil, nil
	}
	if strings.HasPrefix(actor, "api_key:") {
		apiKeyID, err := snowflake.ParseString(strings.TrimPrefix(actor, "api_key:"))
		if err != nil || apiKeyID == 0 {
			return "", "", "", nil, ErrInvalidActor
		}
		apiKeyIDStr := apiKeyID.String()
		role, err := s.roleForAPIKey(ctx, companyID, apiKeyID)
		if err != nil {
			return actor, "", "api_key", &apiKeyIDStr, err
		}
		return actor, fmt.Sprintf("role:%s", strings.ToLower(role)), "api_key", &apiKeyIDStr, nil
	}
	return "", "", "", nil, ErrInvalidActor
}

// roleForAPIKey reads the role from the key row so revocations and role changes
// take effect on the next request.
func (s *ServiceImpl) roleForAPIKey(ctx context.Context, companyID snowflake.ID, apiKeyID snowflake.ID) (string, error) {
	var row struct {
		Role string `gorm:"column:role"`
	}
	if err := s.db.WithContext(ctx).Raw(
		`SELECT role
		 FROM api_keys
		 WHERE company_id = ? AND id = ? AND is_active = ?
		 LIMIT 1`,
		companyID,
		apiKeyID,
		true,
	).Scan(&row).Error; err != nil {
		return "", err
	}

	role := strings.TrimSpace(row.Role)
	if role == "" {
		return "", ErrForbidden
	}
	return role, nil
}

func (s *ServiceImpl) ensureGrouping(subject string, roleName string, domain string) error {
	existing, err := s.enforcer.GetFilteredGroupingPolicy(0, subject, "", domain)
	if err != nil {
		return err
	}
	for _, rule := range existing {
		if len(rule) < 2 {
			continue
		}
		if rule[1] != roleName {
			params := make([]interface{}, 0, len(rule))
			for _, value := range rule {
				params = append(params, value)
			}
			_, _ = s.enforcer.RemoveGroupingPolicy(params...)
		}
	}

	has, err := s.enforcer.HasGroupingPolicy(subject, roleName, domain)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	_, err = s.enforcer.AddGroupingPolicy(subject, roleName, domain)
	return err
}

func (s *ServiceImpl) auditDenied(ctx context.Context, actorType string, actorID *string, companyID snowflake.ID, object string, action string) {
	s.auditDecision(ctx, "authorization.denied", actorType, actorID, companyID, object, action)
}

func (s *ServiceImpl) auditGranted(ctx context.Context, actorType string, actorID *string, companyID snowflake.ID, object string, action string) {
	s.auditDecision(ctx, "authorization.granted", actorType, actorID, companyID, object, action)
}

func (s *ServiceImpl) auditDecision(ctx context.Context, auditAction string, actorType string, actorID *string, companyID snowflake.ID, object string, action string) {
	if s.auditSvc == nil || companyID == 0 {
		return
	}
	targetID := "capability"
	err := s.auditSvc.AuditLog(ctx, &companyID, actorType, actorID, auditAction, "authorization", &targetID, map[string]any{
		"object":     object,
		"action":     action,
		"actor":      actorType,
		"company_id": companyID.String(),
		"subject":    actorSubject(actorType, actorID),
	})
	if err != nil {
		s.log.Warn("failed to write authorization audit", zap.String("action", auditAction), zap.Error(err))
	}
}

func actorSubject(actorType string, actorID *string) string {
	switch actorType {
	case "system":
		return "system"
	case "api_key":
		if actorID != nil && strings.TrimSpace(*actorID) != "" {
			return fmt.Sprintf("api_key:%s", strings.TrimSpace(*actorID))
		}
	}
	return ""
}

func shouldAuditGrant(action string) bool {
	switch action {
	case ActionPaymentDelete, ActionPaymentStatus, ActionCredentialManage, ActionAPIKeyCreate, ActionAPIKeyRotate, ActionAPIKeyRevoke:
		return true
	default:
		return false
	}
}

var viewerPolicies = [][2]string{
	{ObjectCompany, ActionCompanyView},
	{ObjectClient, ActionClientView},
	{ObjectPlan, ActionPlanView},
	{ObjectContract, ActionContractView},
	{ObjectPayment, ActionPaymentView},
	{ObjectNotification, ActionNotificationView},
}

var operatorPolicies = [][2]string{
	{ObjectClient, ActionClientCreate},
	{ObjectClient, ActionClientUpdate},
	{ObjectPlan, ActionPlanCreate},
	{ObjectPlan, ActionPlanUpdate},
	{ObjectContract, ActionContractCreate},
	{ObjectContract, ActionContractUpdate},
	{ObjectPayment, ActionPaymentCreate},
	{ObjectPayment, ActionPaymentCancel},
	{ObjectPayment, ActionPaymentStatus},
	{ObjectPayment, ActionPaymentGenerate},
	{ObjectGateway, ActionGatewayInvoke},
	{ObjectNotification, ActionNotificationSchedule},
	{ObjectNotification, ActionNotificationSend},
}

var adminPolicies = [][2]string{
	{ObjectCompany, ActionCompanyUpdate},
	{ObjectPayment, ActionPaymentDelete},
	{ObjectPayment, ActionPaymentBackfill},
	{ObjectCredential, ActionCredentialView},
	{ObjectCredential, ActionCredentialManage},
	{ObjectAuditLog, ActionAuditLogView},
	{ObjectAPIKey, ActionAPIKeyView},
	{ObjectAPIKey, ActionAPIKeyCreate},
	{ObjectAPIKey, ActionAPIKeyRotate},
	{ObjectAPIKey, ActionAPIKeyRevoke},
}

// seedPolicies grants each role its own set plus everything granted to the roles below it.
func seedPolicies(enforcer *casbin.SyncedEnforcer) error {
	grants := map[string][][2]string{
		"role:viewer":   viewerPolicies,
		"role:operator": concat(viewerPolicies, operatorPolicies),
		"role:admin":    concat(viewerPolicies, operatorPolicies, adminPolicies),
		roleSystem:      concat(viewerPolicies, operatorPolicies, adminPolicies),
	}

	for role, policies := range grants {
		for _, policy := range policies {
			if _, err := enforcer.AddPolicy(role, policy[0], policy[1]); err != nil {
				return err
			}
		}
	}
	return nil
}

func concat(sets ...[][2]string) [][2]string {
	out := make([][2]string, 0)
	for _, set := range sets {
		out = append(out, set...)
	}
	return out
}
