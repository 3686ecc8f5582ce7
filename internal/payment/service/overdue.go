package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vehicleguard/internal/payment/domain"
	"go.uber.org/zap"
)

const defaultOverdueBatch = 200

// MarkOverdue moves pending charges whose due date has passed to overdue.
func (s *Service) MarkOverdue(ctx context.Context, companyID snowflake.ID, limit int) (int, error) {
	if companyID == 0 {
		return 0, domain.ErrInvalidCompany
	}
	if limit <= 0 {
		limit = defaultOverdueBatch
	}

	now := s.clock.Now().UTC()
	today := now.Truncate(24 * time.Hour)
	candidates, err := s.repo.ListOverdueCandidates(ctx, s.db, companyID, today, limit)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return marked, err
		}
		change, err := s.applySignal(ctx, companyID, candidate.ID, domain.SignalOverdue, sourceScheduler)
		if err != nil {
			s.log.Warn("failed to mark payment overdue",
				zap.String("payment_id", candidate.ID.String()),
				zap.Error(err),
			)
			continue
		}
		if change.Changed {
			marked++
		}
	}
	return marked, nil
}
