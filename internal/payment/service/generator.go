package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	companydomain "github.com/smallbiznis/vehicleguard/internal/company/domain"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	eventdomain "github.com/smallbiznis/vehicleguard/internal/paymentevents/domain"
	"github.com/smallbiznis/vehicleguard/internal/ratelimit"
	"github.com/smallbiznis/vehicleguard/pkg/rls"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const chargeGenerationLockTTL = 30 * time.Second

// GenerateNextCharge creates the following month's charge for a paid contract payment.
// Repeated calls for the same source payment create at most one charge.
func (s *Service) GenerateNextCharge(ctx context.Context, companyID, paymentID snowflake.ID) (domain.GenerateResult, error) {
	if companyID == 0 {
		return domain.GenerateResult{}, domain.ErrInvalidCompany
	}
	source, err := s.repo.FindByID(ctx, s.db, companyID, paymentID)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	if source == nil {
		return domain.GenerateResult{}, domain.ErrNotFound
	}

	result, err := s.generateNext(ctx, source)
	if err != nil {
		s.log.Error("next charge generation failed",
			zap.String("payment_id", paymentID.String()),
			zap.Error(err),
		)
		return domain.GenerateResult{}, err
	}

	s.obsMetrics.RecordChargeGeneration(ctx, result.Created, string(result.Outcome))
	if result.Created {
		s.audit(ctx, companyID, "payment.next_charge.create", result.Payment.ID, map[string]any{
			"source_payment_id": source.ID.String(),
			"period":            derefString(result.Payment.Period),
			"amount":            result.Payment.Amount,
		})
	}
	return result, nil
}

func (s *Service) generateNext(ctx context.Context, source *domain.Payment) (domain.GenerateResult, error) {
	if source.Status != domain.StatusPaid {
		return domain.Skipped(domain.ReasonNotPaid), nil
	}
	if source.ContractID == nil {
		return domain.Skipped(domain.ReasonOneOff), nil
	}

	contract, err := s.contractRepo.FindByID(ctx, s.db, source.CompanyID, *source.ContractID)
	if err != nil {
		return domain.GenerateResult{}, err
	}
	if contract == nil || !contract.IsActive() {
		return domain.Skipped(domain.ReasonContractInactive), nil
	}
	if source.DueDate == nil {
		return domain.Skipped(domain.ReasonNoDueDate), nil
	}

	nextDue := domain.NextDueDate(*source.DueDate)
	if contract.EndDate != nil && nextDue.After(*contract.EndDate) {
		result := domain.Skipped(domain.ReasonBeyondEndDate)
		result.NextDueDate = &nextDue
		return result, nil
	}

	period := domain.Period(nextDue)
	monthStart, monthEnd := domain.MonthBounds(nextDue)
	query := domain.PeriodQuery{
		CompanyID:  source.CompanyID,
		ClientID:   source.ClientID,
		ContractID: contract.ID,
		Period:     period,
		MonthStart: monthStart,
		MonthEnd:   monthEnd,
	}

	if s.locker.Enabled() {
		key := ratelimit.ChargeGenerationKey(source.CompanyID, contract.ID, period)
		lease, err := s.locker.TryLock(ctx, key, chargeGenerationLockTTL)
		switch {
		case err != nil:
			s.log.Warn("charge generation lock unavailable, relying on database uniqueness",
				zap.String("key", key),
				zap.Error(err),
			)
		case lease == nil:
			return domain.GenerateResult{
				Outcome:     domain.OutcomeInProgress,
				Reason:      domain.ReasonGenerationInFlight,
				NextDueDate: &nextDue,
			}, nil
		default:
			defer func() {
				if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
					s.log.Warn("failed to release charge generation lock", zap.String("key", key), zap.Error(err))
				}
			}()
		}
	}

	amount := contract.MonthlyValue
	if amount <= 0 {
		amount = source.Amount
	}

	// Resolved before the transaction so the lookup does not compete for the connection.
	baseURL, err := s.companySvc.CheckoutBaseURL(ctx, source.CompanyID)
	if err != nil {
		return domain.GenerateResult{}, wrapf(err, "resolve checkout base url")
	}

	now := s.clock.Now().UTC()
	next := domain.Payment{
		ID:              s.genID.Generate(),
		CompanyID:       source.CompanyID,
		ClientID:        source.ClientID,
		ContractID:      &contract.ID,
		Amount:          amount,
		DueDate:         &nextDue,
		Period:          &period,
		Status:          domain.StatusPending,
		PaymentGateway:  source.PaymentGateway,
		TransactionType: domain.TransactionTypeRecurring,
		Description:     source.Description,
		Metadata: datatypes.JSONMap{
			"source_payment_id": source.ID.String(),
			"generated":         "next_charge",
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	checkoutURL := companydomain.CheckoutURL(baseURL, next.ID)
	next.CheckoutURL = &checkoutURL

	created := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := rls.WithCompany(tx, next.CompanyID); err != nil {
			return err
		}
		exists, err := s.repo.ExistsForPeriod(ctx, tx, query)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		inserted, err := s.repo.InsertIfAbsent(ctx, tx, &next)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		created = true
		return s.writeEvent(ctx, tx, &next, eventdomain.EventPaymentCreated, map[string]any{
			"source_payment_id": source.ID.String(),
		})
	})
	if err != nil {
		return domain.GenerateResult{}, err
	}

	if !created {
		return domain.GenerateResult{
			Outcome:     domain.OutcomeAlreadyExists,
			Reason:      domain.ReasonAlreadyExists,
			NextDueDate: &nextDue,
		}, nil
	}

	s.log.Info("next charge created",
		zap.String("source_payment_id", source.ID.String()),
		zap.String("payment_id", next.ID.String()),
		zap.String("period", period),
	)
	return domain.GenerateResult{
		Created:     true,
		Outcome:     domain.OutcomeCreated,
		Reason:      domain.ReasonCreated,
		Payment:     &next,
		NextDueDate: &nextDue,
	}, nil
}

// Backfill runs the generator for every paid payment whose contract is still active.
// A failure on one payment is recorded and does not stop the rest.
func (s *Service) Backfill(ctx context.Context, companyID snowflake.ID) (domain.BackfillSummary, error) {
	if companyID == 0 {
		return domain.BackfillSummary{}, domain.ErrInvalidCompany
	}
	sources, err := s.repo.ListPaidWithActiveContract(ctx, s.db, companyID)
	if err != nil {
		return domain.BackfillSummary{}, err
	}

	summary := domain.BackfillSummary{Errors: []domain.BackfillError{}}
	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		result, err := s.generateNext(ctx, source)
		if err == nil {
			s.obsMetrics.RecordChargeGeneration(ctx, result.Created, string(result.Outcome))
		}
		summary.Record(source.ID, result, err)
	}

	s.log.Info("next charge backfill finished",
		zap.String("company_id", companyID.String()),
		zap.Int("processed", summary.Processed),
		zap.Int("generated", summary.Generated),
		zap.Int("already_exists", summary.AlreadyExists),
		zap.Int("skipped", summary.Skipped),
		zap.Int("errors", len(summary.Errors)),
	)
	return summary, nil
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
