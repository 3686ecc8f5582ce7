package service

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/vehicleguard/internal/notification/domain"
	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"go.uber.org/zap"
)

var reminderEvents = []domain.EventType{domain.EventPreDue, domain.EventOnDue, domain.EventPostDue}

// ScheduleForPayment queues the due-date reminders of an open charge. Reminders whose send
// time has already passed are left out, and existing ones are kept as they are.
func (s *Service) ScheduleForPayment(ctx context.Context, payment paymentdomain.Payment) ([]domain.Notification, error) {
	if payment.DueDate == nil || !payment.Status.Open() {
		return nil, nil
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, payment.CompanyID, payment.ClientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, domain.ErrInvalidClient
	}

	cfg := s.config.Get()
	loc := location(cfg.Timezone)
	now := s.clock.Now().UTC()
	due := payment.DueDate.UTC()
	paymentID := payment.ID

	created := make([]domain.Notification, 0, len(reminderEvents))
	for _, eventType := range reminderEvents {
		offset := offsetFor(cfg, eventType)
		at := time.Date(due.Year(), due.Month(), due.Day()+offset, cfg.SendHour, 0, 0, 0, loc).UTC()
		if !at.After(now) {
			continue
		}

		body, err := s.render(ctx, cfg, eventType, *client, &payment, "")
		if err != nil {
			return created, err
		}
		n := domain.Notification{
			ID:           s.genID.Generate(),
			CompanyID:    payment.CompanyID,
			ClientID:     payment.ClientID,
			PaymentID:    &paymentID,
			EventType:    eventType,
			OffsetDays:   offset,
			ScheduledFor: at,
			Status:       domain.StatusPending,
			MessageBody:  body,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &n)
		if err != nil {
			return created, err
		}
		if inserted {
			created = append(created, n)
		}
	}

	if len(created) > 0 {
		s.log.Info("payment reminders scheduled",
			zap.String("company_id", payment.CompanyID.String()),
			zap.String("payment_id", payment.ID.String()),
			zap.Int("count", len(created)),
		)
	}
	return created, nil
}

// NotifyPaid sends the payment confirmation once per charge.
func (s *Service) NotifyPaid(ctx context.Context, payment paymentdomain.Payment) error {
	if payment.Status != paymentdomain.StatusPaid {
		return nil
	}
	client, err := s.clientRepo.FindByID(ctx, s.db, payment.CompanyID, payment.ClientID)
	if err != nil {
		return err
	}
	if client == nil {
		return domain.ErrInvalidClient
	}

	cfg := s.config.Get()
	body, err := s.render(ctx, cfg, domain.EventPaid, *client, &payment, "")
	if err != nil {
		return err
	}
	now := s.clock.Now().UTC()
	paymentID := payment.ID
	n := domain.Notification{
		ID:           s.genID.Generate(),
		CompanyID:    payment.CompanyID,
		ClientID:     payment.ClientID,
		PaymentID:    &paymentID,
		EventType:    domain.EventPaid,
		ScheduledFor: now,
		Status:       domain.StatusPending,
		MessageBody:  body,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	inserted, err := s.repo.InsertIfAbsent(ctx, s.db, &n)
	if err != nil || !inserted {
		return err
	}

	if err := s.deliver(ctx, &n); err != nil && !errors.Is(err, domain.ErrRateLimited) {
		return err
	}
	return nil
}

func location(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
