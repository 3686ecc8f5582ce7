package server

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/vehicleguard/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/vehicleguard/internal/audit/domain"
	"github.com/smallbiznis/vehicleguard/internal/authorization"
	clientdomain "github.com/smallbiznis/vehicleguard/internal/client/domain"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	contractdomain "github.com/smallbiznis/vehicleguard/internal/contract/domain"
	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	gatewaydomain "github.com/smallbiznis/vehicleguard/internal/gateway/domain"
	notificationdomain "github.com/smallbiznis/vehicleguard/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	plandomain "github.com/smallbiznis/vehicleguard/internal/plan/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrRateLimited        = errors.New("rate_limited")
	ErrBadGateway         = errors.New("bad_gateway")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

// classifyErrorForLog feeds the request logger with the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	_, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	}
	return payload.Type, code
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	var envErr *gatewaydomain.ValidationError
	if errors.As(err, &envErr) && envErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  envelopeFieldErrors(envErr.Fields),
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, apikeydomain.ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, gatewaydomain.ErrCompanyMismatch):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited),
		errors.Is(err, notificationdomain.ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrBadGateway),
		isUpstreamError(err):
		return http.StatusBadGateway, errorPayload{
			Type:    "bad_gateway",
			Message: "gateway request failed",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isUpstreamError(err error) bool {
	var upErr *gatewaydomain.UpstreamError
	return errors.As(err, &upErr)
}

func envelopeFieldErrors(fields map[string]string) []ValidationError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]ValidationError, 0, len(names))
	for _, name := range names {
		out = append(out, ValidationError{
			Field:   name,
			Code:    fields[name],
			Message: "invalid value",
		})
	}
	if len(out) == 0 {
		out = append(out, ValidationError{Field: "envelope", Code: gatewaydomain.ErrInvalidEnvelope.Error(), Message: "invalid value"})
	}
	return out
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, pagination.ErrInvalidPageToken):
		return true
	case isCompanyValidationError(err),
		isClientValidationError(err),
		isPlanValidationError(err),
		isContractValidationError(err),
		isPaymentValidationError(err),
		isGatewayValidationError(err),
		isCredentialValidationError(err),
		isNotificationValidationError(err),
		isAuditValidationError(err),
		isAPIKeyValidationError(err):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, companydomain.ErrNotFound),
		errors.Is(err, clientdomain.ErrNotFound),
		errors.Is(err, plandomain.ErrNotFound),
		errors.Is(err, contractdomain.ErrNotFound),
		errors.Is(err, paymentdomain.ErrNotFound),
		errors.Is(err, credentialdomain.ErrNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, apikeydomain.ErrNotFound),
		errors.Is(err, gatewaydomain.ErrChargeNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, ErrConflict),
		errors.Is(err, companydomain.ErrSlugTaken),
		errors.Is(err, paymentdomain.ErrPaidImmutable),
		errors.Is(err, paymentdomain.ErrReceiptUnavailable),
		errors.Is(err, paymentdomain.ErrExternalIDConflict),
		errors.Is(err, paymentdomain.ErrPeriodConflict),
		errors.Is(err, paymentdomain.ErrStatusConflict),
		errors.Is(err, notificationdomain.ErrInvalidTransition),
		errors.Is(err, notificationdomain.ErrAlreadyScheduled),
		errors.Is(err, credentialdomain.ErrInactive):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	if errors.Is(err, ErrConflict) {
		return "conflict"
	}
	return errorCode(err)
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	default:
		return errorCode(err)
	}
}

// errorCode returns the innermost sentinel text so wrapped errors keep a stable code.
func errorCode(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func validationErrorField(code string) string {
	if code == "invalid_request" {
		return "request"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case pagination.ErrInvalidPageToken.Error():
		return "invalid page token"
	default:
		return "invalid value"
	}
}

func isCompanyValidationError(err error) bool {
	switch {
	case errors.Is(err, companydomain.ErrInvalidCompany),
		errors.Is(err, companydomain.ErrInvalidName),
		errors.Is(err, companydomain.ErrInvalidDomain),
		errors.Is(err, companydomain.ErrInvalidGateway):
		return true
	default:
		return false
	}
}

func isClientValidationError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrInvalidCompany),
		errors.Is(err, clientdomain.ErrInvalidName),
		errors.Is(err, clientdomain.ErrInvalidEmail),
		errors.Is(err, clientdomain.ErrInvalidPhone),
		errors.Is(err, clientdomain.ErrInvalidStatus),
		errors.Is(err, clientdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isPlanValidationError(err error) bool {
	switch {
	case errors.Is(err, plandomain.ErrInvalidCompany),
		errors.Is(err, plandomain.ErrInvalidName),
		errors.Is(err, plandomain.ErrInvalidValue),
		errors.Is(err, plandomain.ErrInvalidBillingDay),
		errors.Is(err, plandomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isContractValidationError(err error) bool {
	switch {
	case errors.Is(err, contractdomain.ErrInvalidCompany),
		errors.Is(err, contractdomain.ErrInvalidClient),
		errors.Is(err, contractdomain.ErrInvalidPlan),
		errors.Is(err, contractdomain.ErrInvalidValue),
		errors.Is(err, contractdomain.ErrInvalidStartDate),
		errors.Is(err, contractdomain.ErrInvalidEndDate),
		errors.Is(err, contractdomain.ErrInvalidStatus),
		errors.Is(err, contractdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isPaymentValidationError(err error) bool {
	switch {
	case errors.Is(err, paymentdomain.ErrInvalidCompany),
		errors.Is(err, paymentdomain.ErrInvalidClient),
		errors.Is(err, paymentdomain.ErrInvalidContract),
		errors.Is(err, paymentdomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrInvalidDueDate),
		errors.Is(err, paymentdomain.ErrInvalidGateway),
		errors.Is(err, paymentdomain.ErrInvalidStatus),
		errors.Is(err, paymentdomain.ErrInvalidTransactionType),
		errors.Is(err, paymentdomain.ErrInvalidExternalID),
		errors.Is(err, paymentdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isGatewayValidationError(err error) bool {
	switch {
	case errors.Is(err, gatewaydomain.ErrInvalidCompany),
		errors.Is(err, gatewaydomain.ErrUnknownGateway),
		errors.Is(err, gatewaydomain.ErrInvalidConfig),
		errors.Is(err, gatewaydomain.ErrInvalidPayload),
		errors.Is(err, gatewaydomain.ErrUnsupported),
		errors.Is(err, gatewaydomain.ErrInvalidEnvelope):
		return true
	default:
		return false
	}
}

func isCredentialValidationError(err error) bool {
	switch {
	case errors.Is(err, credentialdomain.ErrInvalidCompany),
		errors.Is(err, credentialdomain.ErrInvalidProvider),
		errors.Is(err, credentialdomain.ErrInvalidConfig):
		return true
	default:
		return false
	}
}

func isNotificationValidationError(err error) bool {
	switch {
	case errors.Is(err, notificationdomain.ErrInvalidCompany),
		errors.Is(err, notificationdomain.ErrInvalidClient),
		errors.Is(err, notificationdomain.ErrInvalidPayment),
		errors.Is(err, notificationdomain.ErrInvalidEventType),
		errors.Is(err, notificationdomain.ErrInvalidSchedule),
		errors.Is(err, notificationdomain.ErrInvalidMessage),
		errors.Is(err, notificationdomain.ErrInvalidStatus),
		errors.Is(err, notificationdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidCompany),
		errors.Is(err, auditdomain.ErrInvalidTimeRange),
		errors.Is(err, auditdomain.ErrInvalidAction):
		return true
	default:
		return false
	}
}

func isAPIKeyValidationError(err error) bool {
	switch {
	case errors.Is(err, apikeydomain.ErrInvalidCompany),
		errors.Is(err, apikeydomain.ErrInvalidName),
		errors.Is(err, apikeydomain.ErrInvalidRole),
		errors.Is(err, apikeydomain.ErrInvalidKeyID):
		return true
	default:
		return false
	}
}
