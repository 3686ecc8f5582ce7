package adapters

import (
	"github.com/smallbiznis/vehicleguard/internal/gateway/domain"
)

type Registry struct {
	factories map[domain.Gateway]domain.Factory
}

func NewRegistry(factories ...domain.Factory) *Registry {
	registry := &Registry{factories: map[domain.Gateway]domain.Factory{}}
	for _, factory := range factories {
		if factory == nil {
			continue
		}
		gw, ok := domain.Parse(factory.Gateway().String())
		if !ok {
			continue
		}
		registry.factories[gw] = factory
	}
	return registry
}

func (r *Registry) Factory(gateway string) (domain.Factory, error) {
	if r == nil {
		return nil, domain.ErrUnknownGateway
	}
	gw, ok := domain.Parse(gateway)
	if !ok {
		return nil, domain.ErrUnknownGateway
	}
	factory, ok := r.factories[gw]
	if !ok {
		return nil, domain.ErrUnknownGateway
	}
	return factory, nil
}

func (r *Registry) NewAdapter(gateway string, cfg domain.Config) (domain.Adapter, error) {
	factory, err := r.Factory(gateway)
	if err != nil {
		return nil, err
	}
	return factory.NewAdapter(cfg)
}
