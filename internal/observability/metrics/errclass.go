package metrics

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/smallbiznis/vehicleguard/internal/authorization"
	"gorm.io/gorm"
)

// ErrorClass is a low-cardinality description of a background failure, used as
// a metric label and as log fields.
type ErrorClass struct {
	// Type is one of timeout, authorization, db or business_rule.
	Type string
	// Reason narrows db failures down to the postgres condition.
	Reason    string
	Retryable bool
}

const (
	ReasonTimeout       = "deadline_exceeded"
	ReasonForbidden     = "forbidden"
	ReasonLockTimeout   = "db_lock_timeout"
	ReasonSerialization = "serialization_failure"
	ReasonDuplicate     = "unique_violation"
	ReasonUnknown       = "unknown"
)

var pgReasons = map[string]string{
	"55P03": ReasonLockTimeout,
	"40001": ReasonSerialization,
	"40P01": ReasonSerialization,
	"23505": ReasonDuplicate,
}

var authorizationErrors = []error{
	authorization.ErrForbidden,
	authorization.ErrInvalidActor,
	authorization.ErrInvalidCompany,
	authorization.ErrInvalidObject,
	authorization.ErrInvalidAction,
}

// ClassifyError sorts err into an ErrorClass. Missing rows count as business
// rule failures since they mean the data changed under the job, not that the
// database is unhealthy.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClass{Type: "none", Reason: ReasonUnknown}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorClass{Type: "timeout", Reason: ReasonTimeout, Retryable: true}
	}
	for _, target := range authorizationErrors {
		if errors.Is(err, target) {
			return ErrorClass{Type: "authorization", Reason: ReasonForbidden}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		reason, ok := pgReasons[pgErr.Code]
		if !ok {
			reason = ReasonUnknown
		}
		return ErrorClass{Type: "db", Reason: reason, Retryable: reason != ReasonDuplicate}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrorClass{Type: "db", Reason: ReasonDuplicate}
	}
	if errors.Is(err, gorm.ErrInvalidDB) || errors.Is(err, gorm.ErrInvalidTransaction) {
		return ErrorClass{Type: "db", Reason: ReasonUnknown, Retryable: true}
	}
	return ErrorClass{Type: "business_rule", Reason: ReasonUnknown}
}
