package service

import (
	"context"
	"errors"
	"strings"

	credentialdomain "github.com/smallbiznis/vehicleguard/internal/credential/domain"
	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
	"github.com/smallbiznis/vehicleguard/internal/providers/whatsapp"
	"go.uber.org/zap"
)

const maxLastError = 2000

// deliver sends n through the company's WhatsApp instance and persists the outcome on n.
// The returned error is reserved for rate limiting and storage failures.
func (s *Service) deliver(ctx context.Context, n *domain.Notification) error {
	allowed, retryAfter, err := s.limiter.Allow(ctx, n.CompanyID)
	if err != nil {
		s.log.Warn("notification rate limiter unavailable", zap.Error(err))
	} else if !allowed {
		s.obsMetrics.RecordRateLimitDenied(ctx, "notification.send", "company")
		s.log.Debug("notification rate limited",
			zap.String("notification_id", n.ID.String()),
			zap.Duration("retry_after", retryAfter),
		)
		return domain.ErrRateLimited
	}

	if n.EventType.Reminder() && n.PaymentID != nil {
		payment, err := s.paymentRepo.FindByID(ctx, s.db, n.CompanyID, *n.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil || !payment.Status.Open() {
			return s.finish(ctx, n, domain.StatusSkipped, "charge is no longer open")
		}
	}

	client, err := s.clientRepo.FindByID(ctx, s.db, n.CompanyID, n.ClientID)
	if err != nil {
		return err
	}
	if client == nil || client.Phone == nil || strings.TrimSpace(*client.Phone) == "" {
		return s.finish(ctx, n, domain.StatusFailed, "client has no phone number")
	}

	instance, err := s.instance(ctx, n)
	if err != nil {
		return s.finish(ctx, n, domain.StatusFailed, err.Error())
	}

	receipt, err := s.provider.SendText(ctx, instance, whatsapp.Message{Number: *client.Phone, Text: n.MessageBody})
	if err != nil {
		var sendErr *whatsapp.SendError
		if errors.As(err, &sendErr) && sendErr.Body != "" {
			return s.finish(ctx, n, domain.StatusFailed, sendErr.Body)
		}
		return s.finish(ctx, n, domain.StatusFailed, err.Error())
	}

	s.log.Info("notification sent",
		zap.String("notification_id", n.ID.String()),
		zap.String("company_id", n.CompanyID.String()),
		zap.String("event_type", string(n.EventType)),
		zap.String("message_id", receipt.MessageID),
	)
	return s.finish(ctx, n, domain.StatusSent, "")
}

func (s *Service) instance(ctx context.Context, n *domain.Notification) (whatsapp.Instance, error) {
	secrets, err := s.credentialSvc.Resolve(ctx, n.CompanyID, credentialdomain.ProviderEvolution)
	if err != nil {
		return whatsapp.Instance{}, err
	}
	instance := whatsapp.Instance{
		URL:    secrets.String("instance_url"),
		Name:   secrets.String("instance_name"),
		APIKey: secrets.String("api_token"),
	}
	if instance.APIKey == "" {
		instance.APIKey = secrets.String("api_key")
	}
	return instance, instance.Validate()
}

func (s *Service) finish(ctx context.Context, n *domain.Notification, status domain.Status, reason string) error {
	now := s.clock.Now().UTC()
	n.Status = status
	n.UpdatedAt = now
	n.LastError = nil
	switch status {
	case domain.StatusSent:
		n.Attempts++
		n.SentAt = &now
	case domain.StatusFailed:
		n.Attempts++
	}
	if reason != "" {
		if len(reason) > maxLastError {
			reason = reason[:maxLastError]
		}
		n.LastError = &reason
	}

	if err := s.repo.Update(ctx, s.db, n); err != nil {
		return err
	}
	s.obsMetrics.RecordNotification(ctx, string(n.EventType), string(status))
	if status == domain.StatusFailed {
		s.log.Warn("notification failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("company_id", n.CompanyID.String()),
			zap.String("reason", reason),
		)
	}
	return nil
}
