package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/audit/masking"
	"github.com/smallbiznis/vehicleguard/internal/auditcontext"
	"github.com/smallbiznis/vehicleguard/internal/clock"
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
	Clock clock.Clock `optional:"true"`
	Repo  auditdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  auditdomain.Repository
}

func NewService(p Params) auditdomain.Service {
	c := p.Clock
	if c == nil {
		c = clock.SystemClock{}
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("audit.service"),
		genID: p.GenID,
		clock: c,
		repo:  p.Repo,
	}
}

// AuditLog writes one entry. Secrets in metadata (gateway tokens, API keys) are
// masked before they reach the table.
func (s *Service) AuditLog(ctx context.Context, companyID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	action = strings.TrimSpace(action)
	if action == "" {
		return auditdomain.ErrInvalidAction
	}
	if targetType = strings.TrimSpace(targetType); targetType == "" {
		targetType = "unknown"
	}

	entry := auditdomain.AuditLog{
		ID:         s.genID.Generate(),
		CompanyID:  companyFor(ctx, companyID),
		Action:     action,
		TargetType: targetType,
		TargetID:   trimmed(targetID),
		Metadata:   datatypes.JSONMap(requestMetadata(ctx, metadata)),
		IPAddress:  nonEmpty(auditcontext.IPAddressFromContext(ctx)),
		UserAgent:  nonEmpty(auditcontext.UserAgentFromContext(ctx)),
		CreatedAt:  s.clock.Now().UTC(),
	}
	entry.ActorType, entry.ActorID = actorFor(ctx, strings.TrimSpace(actorType), actorID)

	if err := s.repo.Insert(ctx, s.db, &entry); err != nil {
		s.log.Warn("audit write failed", zap.String("action", action), zap.Error(err))
		return err
	}
	return nil
}

func (s *Service) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	companyID, ok := companycontext.CompanyIDFromContext(ctx)
	if !ok {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidCompany
	}
	if req.StartAt != nil && req.EndAt != nil && req.StartAt.After(*req.EndAt) {
		return auditdomain.ListAuditLogResponse{}, auditdomain.ErrInvalidTimeRange
	}

	rows, err := s.repo.List(ctx, s.db, auditdomain.ListFilter{
		CompanyID:  companyID,
		Action:     req.Action,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		ActorType:  req.ActorType,
		StartAt:    req.StartAt,
		EndAt:      req.EndAt,
	}, req.Pagination)
	if err != nil {
		return auditdomain.ListAuditLogResponse{}, err
	}

	rows, page := pagination.Trim(rows, req.Pagination, func(e *auditdomain.AuditLog) string { return e.ID.String() })
	resp := auditdomain.ListAuditLogResponse{PageInfo: page, AuditLogs: make([]auditdomain.AuditLog, len(rows))}
	for i, e := range rows {
		resp.AuditLogs[i] = *e
	}
	return resp, nil
}

// requestMetadata masks the caller's metadata and stamps the request id and,
// when a webhook or status change is in flight, the payment id.
func requestMetadata(ctx context.Context, in map[string]any) map[string]any {
	out := masking.MaskSensitive(in)
	if out == nil {
		out = map[string]any{}
	}
	if id := auditcontext.RequestIDFromContext(ctx); id != "" {
		out["request_id"] = id
	}
	if id := auditcontext.PaymentIDFromContext(ctx); id != "" {
		if _, set := out["payment_id"]; !set {
			out["payment_id"] = id
		}
	}
	return out
}

func companyFor(ctx context.Context, explicit *snowflake.ID) *snowflake.ID {
	if explicit != nil && *explicit != 0 {
		return explicit
	}
	if id, ok := companycontext.CompanyIDFromContext(ctx); ok {
		return &id
	}
	return nil
}

// actorFor prefers the explicit actor, then the one on ctx, then "system".
func actorFor(ctx context.Context, actorType string, actorID *string) (string, *string) {
	id := trimmed(actorID)
	if actorType == "" {
		if ctxType, ctxID, ok := auditcontext.ActorFromContext(ctx); ok {
			actorType = ctxType
			if id == nil {
				id = nonEmpty(ctxID)
			}
		}
	}
	if actorType == "" {
		actorType = auditcontext.ActorTypeSystem
	}
	return actorType, id
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	return nonEmpty(*v)
}

func nonEmpty(v string) *string {
	if v = strings.TrimSpace(v); v == "" {
		return nil
	}
	return &v
}
