package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type GenerateOutcome string

const (
	OutcomeCreated       GenerateOutcome = "created"
	OutcomeAlreadyExists GenerateOutcome = "already_exists"
	OutcomeSkipped       GenerateOutcome = "skipped"
	OutcomeInProgress    GenerateOutcome = "in_progress"
)

const (
	ReasonCreated            = "next charge created"
	ReasonNotPaid            = "payment not paid"
	ReasonOneOff             = "one-off charge"
	ReasonContractInactive   = "contract not active"
	ReasonNoDueDate          = "payment has no due date"
	ReasonBeyondEndDate      = "next due date exceeds contract end date"
	ReasonAlreadyExists      = "charge already exists for period"
	ReasonGenerationInFlight = "generation in progress"
)

// GenerateResult describes one next-charge attempt. Skips and duplicates are results,
// not errors.
type GenerateResult struct {
	Created     bool            `json:"created"`
	Outcome     GenerateOutcome `json:"outcome"`
	Reason      string          `json:"reason"`
	Payment     *Payment        `json:"payment,omitempty"`
	NextDueDate *time.Time      `json:"next_due_date,omitempty"`
}

func Skipped(reason string) GenerateResult {
	return GenerateResult{Outcome: OutcomeSkipped, Reason: reason}
}

type BackfillError struct {
	PaymentID snowflake.ID `json:"payment_id"`
	Error     string       `json:"error"`
}

type BackfillSummary struct {
	Processed     int             `json:"processed"`
	Generated     int             `json:"generated"`
	AlreadyExists int             `json:"already_exists"`
	Skipped       int             `json:"skipped"`
	Errors        []BackfillError `json:"errors"`
}

// Record folds one generator outcome into the summary.
func (s *BackfillSummary) Record(paymentID snowflake.ID, result GenerateResult, err error) {
	s.Processed++
	if err != nil {
		s.Errors = append(s.Errors, BackfillError{PaymentID: paymentID, Error: err.Error()})
		return
	}
	switch result.Outcome {
	case OutcomeCreated:
		s.Generated++
	case OutcomeAlreadyExists:
		s.AlreadyExists++
	default:
		s.Skipped++
	}
}
