package seed

import (
	"context"
	"errors"

	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	"github.com/smallbiznis/vehicleguard/internal/auditcontext"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/companycontext"
	"github.com/smallbiznis/vehicleguard/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const bootstrapKeyName = "bootstrap"

type Params struct {
	fx.In

	Cfg        config.Config
	Log        *zap.Logger
	CompanySvc companydomain.Service
	APIKeySvc  apikeydomain.Service
}

// Result carries the seeded company and the one-time admin key.
type Result struct {
	Company companydomain.Company
	APIKey  string
}

var Module = fx.Module("seed",
	fx.Invoke(func(lc fx.Lifecycle, p Params) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if p.Cfg.BootstrapCompany == "" || p.Cfg.IsProduction() {
					return nil
				}
				log := p.Log.Named("seed")
				res, err := EnsureDefaultCompany(ctx, p.CompanySvc, p.APIKeySvc, p.Cfg.BootstrapCompany)
				if err != nil {
					return err
				}
				if res == nil {
					return nil
				}
				log.Info("bootstrap company created",
					zap.String("company_id", res.Company.ID.String()),
					zap.String("slug", res.Company.Slug),
					zap.String("api_key", res.APIKey),
				)
				return nil
			},
		})
	}),
)

// EnsureDefaultCompany creates a company and an admin API key when no company exists.
// It returns nil when the database already holds a company.
func EnsureDefaultCompany(ctx context.Context, companies companydomain.Service, keys apikeydomain.Service, name string) (*Result, error) {
	if companies == nil || keys == nil {
		return nil, errors.New("seed services are required")
	}

	ids, err := companies.ListIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		return nil, nil
	}

	ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeSystem, "seed")
	company, err := companies.Create(ctx, companydomain.CreateCompanyRequest{Name: name})
	if err != nil {
		return nil, err
	}

	ctx = companycontext.WithCompanyID(ctx, company.ID)
	secret, err := keys.Create(ctx, apikeydomain.CreateRequest{
		Name: bootstrapKeyName,
		Role: string(apikeydomain.RoleAdmin),
	})
	if err != nil {
		return nil, err
	}

	return &Result{Company: company, APIKey: secret.APIKey}, nil
}
