package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"github.com/smallbiznis/vehicleguard/pkg/db/pagination"
)

type ScheduleRequest struct {
	ClientID     string     `json:"client_id"`
	PaymentID    *string    `json:"payment_id"`
	EventType    string     `json:"event_type"`
	ScheduledFor *time.Time `json:"scheduled_for"`
	Message      *string    `json:"message"`
}

type ListNotificationRequest struct {
	pagination.Pagination
	Status    string `form:"status"`
	EventType string `form:"event_type"`
	ClientID  string `form:"client_id"`
	PaymentID string `form:"payment_id"`
}

type ListNotificationResponse struct {
	pagination.PageInfo
	Notifications []Notification `json:"notifications"`
}

// DispatchSummary reports one DispatchDue pass.
type DispatchSummary struct {
	Processed   int `json:"processed"`
	Sent        int `json:"sent"`
	Failed      int `json:"failed"`
	Skipped     int `json:"skipped"`
	RateLimited int `json:"rate_limited"`
}

type Service interface {
	List(ctx context.Context, req ListNotificationRequest) (ListNotificationResponse, error)
	Get(ctx context.Context, companyID, id snowflake.ID) (Notification, error)
	Schedule(ctx context.Context, req ScheduleRequest) (Notification, error)
	SendNow(ctx context.Context, req ScheduleRequest) (Notification, error)
	Dispatch(ctx context.Context, companyID, id snowflake.ID) (Notification, error)
	DispatchDue(ctx context.Context, now time.Time, limit int) (DispatchSummary, error)
	Resend(ctx context.Context, companyID, id snowflake.ID) (Notification, error)
	Skip(ctx context.Context, companyID, id snowflake.ID) (Notification, error)

	ScheduleForPayment(ctx context.Context, payment paymentdomain.Payment) ([]Notification, error)
	NotifyPaid(ctx context.Context, payment paymentdomain.Payment) error
}

var (
	ErrInvalidCompany    = errors.New("invalid_company")
	ErrInvalidClient     = errors.New("invalid_client")
	ErrInvalidPayment    = errors.New("invalid_payment")
	ErrInvalidEventType  = errors.New("invalid_event_type")
	ErrInvalidSchedule   = errors.New("invalid_scheduled_for")
	ErrInvalidMessage    = errors.New("invalid_message")
	ErrInvalidID         = errors.New("invalid_id")
	ErrInvalidStatus     = errors.New("invalid_status")
	ErrInvalidTransition = errors.New("invalid_notification_transition")
	ErrAlreadyScheduled  = errors.New("notification_already_scheduled")
	ErrRateLimited       = errors.New("notification_rate_limited")
	ErrNotFound          = errors.New("not_found")
)
