package service

import (
	"context"

	paymentdomain "github.com/smallbiznis/vehicleguard/internal/payment/domain"
	eventdomain "github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
)

// HandlePaymentEvent keeps notifications in step with charges: new charges get their
// reminders and charges that become paid get a confirmation.
func (s *Service) HandlePaymentEvent(ctx context.Context, event eventdomain.Event) error {
	switch event.EventType {
	case eventdomain.EventPaymentCreated:
	case eventdomain.EventPaymentStatusChanged:
		if to, _ := event.Payload["to"].(string); to != string(paymentdomain.StatusPaid) {
			return nil
		}
	default:
		return nil
	}

	payment, err := s.paymentRepo.FindByID(ctx, s.db, event.CompanyID, event.PaymentID)
	if err != nil || payment == nil {
		return err
	}
	if payment.Status == paymentdomain.StatusPaid {
		return s.NotifyPaid(ctx, *payment)
	}
	_, err = s.ScheduleForPayment(ctx, *payment)
	return err
}
