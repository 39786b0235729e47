package services

import (
	"context"
	"fmt"
	"time"

	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// InterestInput describes one interest calculation request. AnnualRate is a
// decimal fraction; leave it nil to resolve the configured INTEREST rate for
// the tax year instead.
type InterestInput struct {
	TenantID         string
	TaxYear          int
	UnpaidTax        decimal.Decimal
	StartDate        time.Time
	EndDate          time.Time
	AnnualRate       *decimal.Decimal
	IncludeBreakdown bool
}

// InterestResult pairs a calculation with its rendered explanation.
type InterestResult struct {
	Calculation *models.InterestCalculation
	Explanation string
}

// InterestService defines the interface for interest calculations on unpaid
// tax balances.
type InterestService interface {
	// Calculate computes quarterly-compounded interest over the input range.
	// Returns engine.ErrInvalidDateRange or engine.ErrNegativeAmount for bad
	// inputs, ErrRateNotFound when rate resolution was requested and no rate
	// is configured, and error for database failures.
	Calculate(ctx context.Context, input InterestInput) (*InterestResult, error)
}

// interestService is the concrete implementation of InterestService.
type interestService struct {
	rates RateService
	log   *logger.Logger
}

// NewInterestService creates a new instance of InterestService.
func NewInterestService(rates RateService, log *logger.Logger) InterestService {
	return &interestService{
		rates: rates,
		log:   log,
	}
}

func (s *interestService) Calculate(ctx context.Context, input InterestInput) (*InterestResult, error) {
	rate, err := s.annualRate(ctx, input)
	if err != nil {
		return nil, err
	}

	s.log.Info("Calculating interest", map[string]interface{}{
		"tenant_id":  input.TenantID,
		"unpaid_tax": input.UnpaidTax.String(),
		"start_date": input.StartDate.Format("2006-01-02"),
		"end_date":   input.EndDate.Format("2006-01-02"),
		"rate":       rate.String(),
	})

	calc, err := engine.CalculateInterest(input.UnpaidTax, input.StartDate, input.EndDate, rate, input.IncludeBreakdown)
	if err != nil {
		s.log.Warn("Interest calculation rejected", map[string]interface{}{
			"tenant_id": input.TenantID,
			"error":     err.Error(),
		})
		return nil, err
	}

	return &InterestResult{
		Calculation: calc,
		Explanation: engine.InterestExplanation(calc),
	}, nil
}

// annualRate prefers the request-supplied rate and otherwise resolves the
// configured INTEREST rate for the tax year.
func (s *interestService) annualRate(ctx context.Context, input InterestInput) (decimal.Decimal, error) {
	if input.AnnualRate != nil {
		return *input.AnnualRate, nil
	}

	rate, err := s.rates.ResolveRate(ctx, input.TenantID, input.TaxYear, models.RateInterest)
	if err != nil {
		return decimal.Zero, fmt.Errorf("interest rate lookup: %w", err)
	}
	return rate, nil
}
