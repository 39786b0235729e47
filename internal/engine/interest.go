package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// Engine-level sentinel errors. All engines fail with typed values and never
// silently correct their inputs.
var (
	ErrInvalidDateRange = errors.New("end date precedes start date")
	ErrNegativeAmount   = errors.New("amount must not be negative")
)

var daysPerYear = decimal.NewFromInt(365)

// CalculateInterest computes interest on unpaid tax over [start, end) using
// quarterly compounding at the given annual rate (a decimal fraction, 0.07
// for 7%).
//
// The range is partitioned on calendar-quarter boundaries. Each quarter
// accrues round2(balance * annualRate * days/365); the rounded figure is
// added to the balance before the next quarter accrues, so compounding uses
// the rounded amount, not the exact one. A zero principal yields zero
// interest with an empty breakdown. The breakdown is populated only when
// requested.
func CalculateInterest(unpaidTax decimal.Decimal, start, end time.Time, annualRate decimal.Decimal, includeBreakdown bool) (*models.InterestCalculation, error) {
	if end.Before(start) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange,
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if unpaidTax.IsNegative() {
		return nil, fmt.Errorf("%w: unpaid tax %s", ErrNegativeAmount, unpaidTax)
	}
	if annualRate.IsNegative() {
		return nil, fmt.Errorf("%w: annual rate %s", ErrNegativeAmount, annualRate)
	}

	start = midnightUTC(start)
	end = midnightUTC(end)

	calc := &models.InterestCalculation{
		StartDate:     start,
		EndDate:       end,
		UnpaidTax:     unpaidTax,
		AnnualRate:    annualRate,
		TotalDays:     daysBetween(start, end),
		TotalInterest: decimal.Zero,
		Compounding:   models.CompoundingQuarterly,
	}

	if unpaidTax.IsZero() || start.Equal(end) {
		return calc, nil
	}

	balance := unpaidTax
	total := decimal.Zero

	for cursor := start; cursor.Before(end); {
		periodEnd := nextQuarterStart(cursor)
		if periodEnd.After(end) {
			periodEnd = end
		}

		days := daysBetween(cursor, periodEnd)
		interest := balance.
			Mul(annualRate).
			Mul(decimal.NewFromInt(int64(days))).
			Div(daysPerYear).
			Round(2)
		ending := balance.Add(interest)

		if includeBreakdown {
			calc.Quarters = append(calc.Quarters, models.QuarterlyInterest{
				Quarter:          quarterLabel(cursor),
				StartDate:        cursor,
				EndDate:          periodEnd,
				Days:             days,
				BeginningBalance: balance,
				Rate:             annualRate,
				InterestAmount:   interest,
				EndingBalance:    ending,
			})
		}

		total = total.Add(interest)
		balance = ending
		cursor = periodEnd
	}

	calc.TotalInterest = total
	return calc, nil
}

// InterestExplanation renders a natural-language summary of a calculation
// for the API's explanation field.
func InterestExplanation(calc *models.InterestCalculation) string {
	if calc.TotalInterest.IsZero() {
		return fmt.Sprintf("No interest accrued on %s between %s and %s.",
			formatMoney(calc.UnpaidTax),
			calc.StartDate.Format("2006-01-02"),
			calc.EndDate.Format("2006-01-02"))
	}

	periods := len(calc.Quarters)
	suffix := ""
	if periods > 0 {
		noun := "periods"
		if periods == 1 {
			noun = "period"
		}
		suffix = fmt.Sprintf(" across %d quarterly compounding %s", periods, noun)
	}

	return fmt.Sprintf(
		"Interest of %s accrued on unpaid tax of %s from %s to %s (%d days) at an annual rate of %s%%, compounded quarterly%s.",
		formatMoney(calc.TotalInterest),
		formatMoney(calc.UnpaidTax),
		calc.StartDate.Format("2006-01-02"),
		calc.EndDate.Format("2006-01-02"),
		calc.TotalDays,
		calc.AnnualRate.Mul(decimal.NewFromInt(100)),
		suffix,
	)
}

// formatMoney renders a decimal with exactly two fraction digits and a
// dollar sign for explanation strings.
func formatMoney(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}
