package services

import (
	"context"
	"fmt"

	"github.com/civitax/engine/internal/config"
	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// SafeHarborInput carries the figures for a standalone safe-harbor check.
// PriorYearLiability is nil for first-year filers.
type SafeHarborInput struct {
	CurrentYearLiability decimal.Decimal
	TotalPaid            decimal.Decimal
	AGI                  decimal.Decimal
	PriorYearLiability   *decimal.Decimal
}

// EstimatedPenaltyInput describes one estimated-tax penalty calculation.
// AnnualRate is a decimal fraction; leave it nil to resolve the configured
// ESTIMATED_TAX rate for the tax year.
type EstimatedPenaltyInput struct {
	TenantID           string
	TaxYear            int
	AnnualLiability    decimal.Decimal
	Payments           []engine.EstimatedPayment
	AnnualRate         *decimal.Decimal
	AGI                decimal.Decimal
	PriorYearLiability *decimal.Decimal
}

// EstimatedTaxService defines the interface for safe-harbor evaluation and
// estimated-tax penalty calculations.
type EstimatedTaxService interface {
	// EvaluateSafeHarbor tests both statutory safe harbors.
	// Returns engine.ErrNegativeAmount for bad inputs.
	EvaluateSafeHarbor(ctx context.Context, input SafeHarborInput) (models.SafeHarborEvaluation, error)

	// CalculatePenalty builds the quarterly underpayment schedule, applying
	// the safe harbors before any penalty accrues.
	// Returns engine.ErrNegativeAmount for bad inputs, ErrRateNotFound when
	// rate resolution was requested and no rate is configured.
	CalculatePenalty(ctx context.Context, input EstimatedPenaltyInput) (*models.EstimatedTaxPenalty, error)
}

// estimatedTaxService is the concrete implementation of EstimatedTaxService.
type estimatedTaxService struct {
	rates RateService
	cfg   config.TaxConfig
	log   *logger.Logger
}

// NewEstimatedTaxService creates a new instance of EstimatedTaxService.
func NewEstimatedTaxService(rates RateService, cfg config.TaxConfig, log *logger.Logger) EstimatedTaxService {
	return &estimatedTaxService{
		rates: rates,
		cfg:   cfg,
		log:   log,
	}
}

// safeHarborParams maps the statutory configuration into engine parameters.
func (s *estimatedTaxService) safeHarborParams() engine.SafeHarborParams {
	return engine.SafeHarborParams{
		Harbor1Percent:     s.cfg.SafeHarbor1Percent,
		Harbor2BasePercent: s.cfg.SafeHarbor2BasePercent,
		Harbor2HighPercent: s.cfg.SafeHarbor2HighPercent,
		AGIThreshold:       s.cfg.AGIThreshold,
	}
}

func (s *estimatedTaxService) EvaluateSafeHarbor(ctx context.Context, input SafeHarborInput) (models.SafeHarborEvaluation, error) {
	eval, err := engine.EvaluateSafeHarbor(
		s.safeHarborParams(),
		input.CurrentYearLiability,
		input.TotalPaid,
		input.AGI,
		input.PriorYearLiability,
	)
	if err != nil {
		s.log.Warn("Safe harbor evaluation rejected", map[string]interface{}{
			"error": err.Error(),
		})
		return models.SafeHarborEvaluation{}, err
	}

	s.log.Info("Safe harbor evaluated", map[string]interface{}{
		"harbor_1_met": eval.SafeHarbor1Met,
		"harbor_2_met": eval.SafeHarbor2Met,
		"any_met":      eval.AnySafeHarborMet,
	})

	return eval, nil
}

func (s *estimatedTaxService) CalculatePenalty(ctx context.Context, input EstimatedPenaltyInput) (*models.EstimatedTaxPenalty, error) {
	totalPaid := decimal.Zero
	for _, p := range input.Payments {
		totalPaid = totalPaid.Add(p.Amount)
	}

	harbor, err := engine.EvaluateSafeHarbor(
		s.safeHarborParams(),
		input.AnnualLiability,
		totalPaid,
		input.AGI,
		input.PriorYearLiability,
	)
	if err != nil {
		return nil, err
	}

	rate, err := s.annualRate(ctx, input)
	if err != nil {
		return nil, err
	}

	s.log.Info("Calculating estimated tax penalty", map[string]interface{}{
		"tenant_id":        input.TenantID,
		"tax_year":         input.TaxYear,
		"annual_liability": input.AnnualLiability.String(),
		"payments":         len(input.Payments),
		"safe_harbor_met":  harbor.AnySafeHarborMet,
	})

	penalty, err := engine.CalculateEstimatedTaxPenalty(input.TaxYear, input.AnnualLiability, input.Payments, rate, harbor)
	if err != nil {
		s.log.Warn("Estimated tax penalty calculation rejected", map[string]interface{}{
			"tenant_id": input.TenantID,
			"error":     err.Error(),
		})
		return nil, err
	}

	return penalty, nil
}

// annualRate prefers the request-supplied rate and otherwise resolves the
// configured ESTIMATED_TAX rate for the tax year.
func (s *estimatedTaxService) annualRate(ctx context.Context, input EstimatedPenaltyInput) (decimal.Decimal, error) {
	if input.AnnualRate != nil {
		return *input.AnnualRate, nil
	}

	rate, err := s.rates.ResolveRate(ctx, input.TenantID, input.TaxYear, models.RateEstimatedTax)
	if err != nil {
		return decimal.Zero, fmt.Errorf("estimated tax rate lookup: %w", err)
	}
	return rate, nil
}
