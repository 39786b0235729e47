package engine

import (
	"fmt"

	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// SafeHarborParams carries the statutory safe-harbor fractions and the AGI
// threshold. Values come from configuration because they change by statute.
type SafeHarborParams struct {
	// Harbor1Percent is the current-year fraction (0.90).
	Harbor1Percent decimal.Decimal
	// Harbor2BasePercent is the prior-year fraction (1.00).
	Harbor2BasePercent decimal.Decimal
	// Harbor2HighPercent replaces the base fraction when AGI exceeds
	// AGIThreshold (1.10).
	Harbor2HighPercent decimal.Decimal
	AGIThreshold       decimal.Decimal
}

// EvaluateSafeHarbor tests the two statutory safe harbors for estimated-tax
// payments. It is pure and stateless; callers may snapshot the result.
//
// Harbor 1 is met when total payments reach Harbor1Percent of the
// current-year liability. Harbor 2 is met when payments reach the prior-year
// liability scaled by the base fraction, or by the high fraction for AGI
// above the threshold. A nil priorYearLiability (first-year filer) makes
// harbor 2 not applicable and not met rather than defaulting to met.
func EvaluateSafeHarbor(params SafeHarborParams, currentYearLiability, totalPaid, agi decimal.Decimal, priorYearLiability *decimal.Decimal) (models.SafeHarborEvaluation, error) {
	if currentYearLiability.IsNegative() {
		return models.SafeHarborEvaluation{}, fmt.Errorf("%w: current-year liability %s", ErrNegativeAmount, currentYearLiability)
	}
	if totalPaid.IsNegative() {
		return models.SafeHarborEvaluation{}, fmt.Errorf("%w: total paid %s", ErrNegativeAmount, totalPaid)
	}

	eval := models.SafeHarborEvaluation{
		TotalPaid:    totalPaid,
		AGI:          agi,
		AGIThreshold: params.AGIThreshold,
	}

	eval.SafeHarbor1Required = currentYearLiability.Mul(params.Harbor1Percent).Round(2)
	eval.SafeHarbor1Met = totalPaid.GreaterThanOrEqual(eval.SafeHarbor1Required)

	if currentYearLiability.IsPositive() {
		eval.PercentOfCurrentYear = totalPaid.
			Div(currentYearLiability).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}

	if priorYearLiability != nil && !priorYearLiability.IsNegative() {
		eval.SafeHarbor2Applies = true
		multiplier := params.Harbor2BasePercent
		if agi.GreaterThan(params.AGIThreshold) {
			multiplier = params.Harbor2HighPercent
		}
		eval.SafeHarbor2Required = priorYearLiability.Mul(multiplier).Round(2)
		eval.SafeHarbor2Met = totalPaid.GreaterThanOrEqual(eval.SafeHarbor2Required)
	}

	eval.AnySafeHarborMet = eval.SafeHarbor1Met || eval.SafeHarbor2Met
	return eval, nil
}
