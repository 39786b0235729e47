package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// EstimatedPayment is one estimated-tax payment made during the year.
type EstimatedPayment struct {
	Date   time.Time
	Amount decimal.Decimal
}

var quarterFraction = decimal.NewFromFloat(0.25)

// CalculateEstimatedTaxPenalty builds the per-quarter underpayment schedule
// and penalty for a tax year.
//
// The quarterly requirement is cumulative: quarter i requires 25%*i of the
// annual liability against the running sum of payments made by that
// quarter's due date. The cumulative formulation is what lets an overpayment
// in an early quarter offset an underpayment in a later one; the quarters
// are folded in order, never evaluated in isolation.
//
// Each quarter's penalty accrues daily (annualRate/365, simple, not
// compounded) on the underpayment from the quarter's due date until the
// earlier of the date later payments cure the shortfall and the annual
// return due date. When a safe harbor is met the schedule is still
// populated for transparency but every penalty is zero.
func CalculateEstimatedTaxPenalty(
	taxYear int,
	annualLiability decimal.Decimal,
	payments []EstimatedPayment,
	annualRate decimal.Decimal,
	safeHarbor models.SafeHarborEvaluation,
) (*models.EstimatedTaxPenalty, error) {
	if annualLiability.IsNegative() {
		return nil, fmt.Errorf("%w: annual liability %s", ErrNegativeAmount, annualLiability)
	}
	if annualRate.IsNegative() {
		return nil, fmt.Errorf("%w: annual rate %s", ErrNegativeAmount, annualRate)
	}
	for _, p := range payments {
		if p.Amount.IsNegative() {
			return nil, fmt.Errorf("%w: payment on %s of %s", ErrNegativeAmount,
				p.Date.Format("2006-01-02"), p.Amount)
		}
	}

	sorted := make([]EstimatedPayment, len(payments))
	copy(sorted, payments)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	dueDates := EstimatedDueDates(taxYear)
	returnDue := ReturnDueDate(taxYear)

	result := &models.EstimatedTaxPenalty{
		TaxYear:         taxYear,
		Method:          models.MethodStandard,
		AnnualLiability: annualLiability,
		SafeHarbor:      safeHarbor,
		TotalPenalty:    decimal.Zero,
	}

	prevRequiredCumulative := decimal.Zero
	prevActualAtDue := decimal.Zero

	for i, quarter := range models.Quarters {
		due := dueDates[i]
		requiredCumulative := annualLiability.
			Mul(quarterFraction).
			Mul(decimal.NewFromInt(int64(i + 1))).
			Round(2)
		actualAtDue := paidThrough(sorted, due)

		underpayment := requiredCumulative.Sub(actualAtDue)
		if underpayment.IsNegative() {
			underpayment = decimal.Zero
		}

		row := models.QuarterlyUnderpayment{
			Quarter:         quarter,
			DueDate:         due,
			RequiredPayment: requiredCumulative.Sub(prevRequiredCumulative),
			ActualPayment:   actualAtDue.Sub(prevActualAtDue),
			Underpayment:    underpayment,
			PenaltyAmount:   decimal.Zero,
		}

		if underpayment.IsPositive() {
			accrualEnd := cureDate(sorted, requiredCumulative, due, returnDue)
			row.DaysLate = daysBetween(due, accrualEnd)
			if !safeHarbor.AnySafeHarborMet && row.DaysLate > 0 {
				row.PenaltyAmount = underpayment.
					Mul(annualRate).
					Mul(decimal.NewFromInt(int64(row.DaysLate))).
					Div(daysPerYear).
					Round(2)
			}
		}

		result.TotalPenalty = result.TotalPenalty.Add(row.PenaltyAmount)
		result.Underpayments = append(result.Underpayments, row)

		prevRequiredCumulative = requiredCumulative
		prevActualAtDue = actualAtDue
	}

	if safeHarbor.AnySafeHarborMet {
		result.TotalPenalty = decimal.Zero
	}

	return result, nil
}

// paidThrough sums payments made on or before the cutoff date.
func paidThrough(sorted []EstimatedPayment, cutoff time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, p := range sorted {
		if daysBetween(p.Date, cutoff) < 0 {
			break
		}
		total = total.Add(p.Amount)
	}
	return total
}

// cureDate finds when the running payment total first reaches the cumulative
// requirement, scanning payments after the quarter due date. The accrual
// never runs past the annual return due date.
func cureDate(sorted []EstimatedPayment, requiredCumulative decimal.Decimal, due, returnDue time.Time) time.Time {
	running := decimal.Zero
	for _, p := range sorted {
		running = running.Add(p.Amount)
		if running.GreaterThanOrEqual(requiredCumulative) {
			cured := midnightUTC(p.Date)
			if cured.Before(due) {
				return due
			}
			if cured.After(returnDue) {
				return returnDue
			}
			return cured
		}
	}
	return returnDue
}
