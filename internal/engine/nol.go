package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/civitax/engine/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrAlreadyCarriedBack  = errors.New("vintage has already been carried back")
	ErrIneligibleVintage   = errors.New("vintage origin year is outside the carryback window")
	ErrInvalidLossAmount   = errors.New("loss amount must be positive")
	ErrInvalidLimitation   = errors.New("limitation percentage must be between 0 and 100")
	ErrInsufficientBalance = errors.New("carryback amount exceeds available balance")
)

var oneHundred = decimal.NewFromInt(100)

// NOLDeductionResult is the outcome of applying one year's NOL deduction
// against a vintage ledger.
type NOLDeductionResult struct {
	Vintages              []models.NOLVintage
	NOLDeduction          decimal.Decimal
	ExpiredAmount         decimal.Decimal
	TaxableIncomeAfterNOL decimal.Decimal
}

// ApplyNOLDeduction consumes loss carryforwards against taxable income.
//
// The input ledger is never mutated; the returned vintages are an updated
// copy, so a failed persistence attempt leaves the caller's snapshot intact.
//
// Processing order for the year:
//  1. Expiration sweep. Any vintage whose expiration date falls in or before
//     asOf's calendar year moves its remaining available balance to Expired.
//     Expiring losses are never deductible in the expiration year itself.
//  2. Strict FIFO consumption, oldest origin year first, up to the smaller
//     of the limitation cap (taxableIncome * limitationPercentage / 100) and
//     the total available balance.
//
// The conservation invariant OriginalAmount = PreviouslyUsed + Expired +
// AvailableThisYear holds for every vintage on return.
func ApplyNOLDeduction(vintages []models.NOLVintage, taxableIncomeBeforeNOL, limitationPercentage decimal.Decimal, asOf time.Time) (*NOLDeductionResult, error) {
	if limitationPercentage.IsNegative() || limitationPercentage.GreaterThan(oneHundred) {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidLimitation, limitationPercentage)
	}

	updated := make([]models.NOLVintage, len(vintages))
	copy(updated, vintages)
	sort.SliceStable(updated, func(i, j int) bool {
		return updated[i].TaxYear < updated[j].TaxYear
	})

	result := &NOLDeductionResult{
		NOLDeduction:  decimal.Zero,
		ExpiredAmount: decimal.Zero,
	}

	// Expiration sweep before any consumption.
	for i := range updated {
		v := &updated[i]
		v.UsedThisYear = decimal.Zero
		if v.ExpirationDate != nil && v.ExpirationDate.Year() <= asOf.Year() {
			result.ExpiredAmount = result.ExpiredAmount.Add(v.AvailableThisYear)
			v.Expired = v.Expired.Add(v.AvailableThisYear)
			v.AvailableThisYear = decimal.Zero
		}
		v.RemainingForFuture = v.AvailableThisYear
	}

	cap := taxableIncomeBeforeNOL.Mul(limitationPercentage).Div(oneHundred).Round(2)
	if cap.IsNegative() {
		cap = decimal.Zero
	}

	remaining := cap
	for i := range updated {
		if !remaining.IsPositive() {
			break
		}
		v := &updated[i]
		if !v.AvailableThisYear.IsPositive() {
			continue
		}

		use := decimal.Min(v.AvailableThisYear, remaining)
		v.UsedThisYear = use
		v.RemainingForFuture = v.AvailableThisYear.Sub(use)
		result.NOLDeduction = result.NOLDeduction.Add(use)
		remaining = remaining.Sub(use)
	}

	result.Vintages = updated
	result.TaxableIncomeAfterNOL = taxableIncomeBeforeNOL.Sub(result.NOLDeduction)
	return result, nil
}

// NewVintage creates a fresh loss tranche for a year that produced an NOL.
// The expiration date is nil for origin years under the indefinite-carry
// rule; the caller derives it from the statutory configuration.
func NewVintage(businessID string, taxYear int, amount decimal.Decimal, expirationDate *time.Time) (models.NOLVintage, error) {
	if !amount.IsPositive() {
		return models.NOLVintage{}, fmt.Errorf("%w: got %s", ErrInvalidLossAmount, amount)
	}

	now := time.Now().UTC()
	return models.NOLVintage{
		ID:                 uuid.New(),
		BusinessID:         businessID,
		TaxYear:            taxYear,
		OriginalAmount:     amount,
		PreviouslyUsed:     decimal.Zero,
		Expired:            decimal.Zero,
		AvailableThisYear:  amount,
		UsedThisYear:       decimal.Zero,
		RemainingForFuture: amount,
		ExpirationDate:     expirationDate,
		CarrybackAmount:    decimal.Zero,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// ElectCarryback records a one-time carryback election against a vintage.
// The vintage must not have been carried back before, its origin year must
// fall inside [windowStart, windowEnd], and the amount must fit within the
// available balance. On success the carried-back amount moves from
// AvailableThisYear to PreviouslyUsed, preserving conservation.
func ElectCarryback(v *models.NOLVintage, amount decimal.Decimal, windowStart, windowEnd int) error {
	if v.IsCarriedBack {
		return fmt.Errorf("%w: vintage %d", ErrAlreadyCarriedBack, v.TaxYear)
	}
	if v.TaxYear < windowStart || v.TaxYear > windowEnd {
		return fmt.Errorf("%w: vintage %d, eligible window %d-%d",
			ErrIneligibleVintage, v.TaxYear, windowStart, windowEnd)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidLossAmount, amount)
	}
	if amount.GreaterThan(v.AvailableThisYear) {
		return fmt.Errorf("%w: %s requested, %s available",
			ErrInsufficientBalance, amount, v.AvailableThisYear)
	}

	v.IsCarriedBack = true
	v.CarrybackAmount = amount
	v.AvailableThisYear = v.AvailableThisYear.Sub(amount)
	v.PreviouslyUsed = v.PreviouslyUsed.Add(amount)
	v.RemainingForFuture = v.AvailableThisYear.Sub(v.UsedThisYear)
	return nil
}

// ExpirationAlerts derives expiration warnings for vintages with a balance
// still at stake. Severity comes from the years remaining until expiration:
// at most criticalYears away is CRITICAL, at most warningYears is WARNING,
// anything further out is INFO. Already-expired vintages produce no alert;
// the next deduction's expiration sweep retires them.
func ExpirationAlerts(vintages []models.NOLVintage, asOf time.Time, criticalYears, warningYears int) []models.NOLAlert {
	alerts := make([]models.NOLAlert, 0)

	for _, v := range vintages {
		if v.ExpirationDate == nil || !v.AvailableThisYear.IsPositive() {
			continue
		}
		yearsUntil := v.ExpirationDate.Year() - asOf.Year()
		if yearsUntil < 0 {
			continue
		}

		severity := models.SeverityInfo
		switch {
		case yearsUntil <= criticalYears:
			severity = models.SeverityCritical
		case yearsUntil <= warningYears:
			severity = models.SeverityWarning
		}

		alerts = append(alerts, models.NOLAlert{
			NOLID:                v.ID,
			TaxYear:              v.TaxYear,
			NOLBalance:           v.AvailableThisYear,
			ExpirationDate:       *v.ExpirationDate,
			YearsUntilExpiration: yearsUntil,
			SeverityLevel:        severity,
			AlertMessage: fmt.Sprintf(
				"NOL carryforward of %s from tax year %d expires on %s (%d year(s) remaining).",
				formatMoney(v.AvailableThisYear),
				v.TaxYear,
				v.ExpirationDate.Format("2006-01-02"),
				yearsUntil,
			),
		})
	}

	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].TaxYear < alerts[j].TaxYear
	})
	return alerts
}
