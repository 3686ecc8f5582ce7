package authorization

import (
	"context"
	"errors"
)

// Service decides whether an actor may perform an action inside one company.
// Actors are "system" or "api_key:{id}".
type Service interface {
	Authorize(ctx context.Context, actor string, companyID string, object string, action string) error
}

var (
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidActor   = errors.New("invalid_actor")
	ErrInvalidCompany = errors.New("invalid_company")
	ErrInvalidObject  = errors.New("invalid_object")
	ErrInvalidAction  = errors.New("invalid_action")
)
