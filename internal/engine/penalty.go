package engine

import (
	"fmt"
	"time"

	"github.com/civitax/engine/internal/models"
	"github.com/shopspring/decimal"
)

// daysPerStatutoryMonth is the divisor for the months-late computation.
// Lateness is counted in 30-day statutory months, rounded up, with a
// one-month minimum for any lateness at all.
const daysPerStatutoryMonth = 30

// LatePenalty is the result of evaluating one late-filing or late-payment
// penalty. A zero PenaltyAmount is a real evaluation result, not an absent
// one: callers can always distinguish "evaluated, zero" from "not evaluated".
type LatePenalty struct {
	Type           models.PenaltyType
	DaysLate       int
	MonthsLate     int
	TaxBase        decimal.Decimal
	MonthlyRate    decimal.Decimal
	PenaltyAmount  decimal.Decimal
	MaximumPenalty decimal.Decimal
	CappedAtMax    bool
	Explanation    string
}

// CombinedPenalties holds both penalties on the same tax base after the
// combined ceiling has been applied.
type CombinedPenalties struct {
	LateFiling             LatePenalty
	LatePayment            LatePenalty
	TotalPenalty           decimal.Decimal
	CombinedCapApplied     bool
	CombinedCapExplanation string
}

// CalculateLateFiling computes the late-filing penalty for a return due on
// dueDate and filed on filedDate. Rates are decimal fractions: monthlyRate
// 0.05 for 5% per month, maxPercent 0.25 for a 25% ceiling.
func CalculateLateFiling(dueDate, filedDate time.Time, taxDue, monthlyRate, maxPercent decimal.Decimal) (LatePenalty, error) {
	return calculateLatePenalty(models.PenaltyLateFiling, "filed", dueDate, filedDate, taxDue, monthlyRate, maxPercent)
}

// CalculateLatePayment computes the late-payment penalty on the unpaid
// amount for a payment due on dueDate and made on paidDate.
func CalculateLatePayment(dueDate, paidDate time.Time, unpaidAmount, monthlyRate, maxPercent decimal.Decimal) (LatePenalty, error) {
	return calculateLatePenalty(models.PenaltyLatePayment, "paid", dueDate, paidDate, unpaidAmount, monthlyRate, maxPercent)
}

func calculateLatePenalty(kind models.PenaltyType, verb string, dueDate, actualDate time.Time, taxBase, monthlyRate, maxPercent decimal.Decimal) (LatePenalty, error) {
	if taxBase.IsNegative() {
		return LatePenalty{}, fmt.Errorf("%w: tax base %s", ErrNegativeAmount, taxBase)
	}
	if monthlyRate.IsNegative() || maxPercent.IsNegative() {
		return LatePenalty{}, fmt.Errorf("%w: penalty rate", ErrNegativeAmount)
	}

	p := LatePenalty{
		Type:           kind,
		TaxBase:        taxBase,
		MonthlyRate:    monthlyRate,
		MaximumPenalty: taxBase.Mul(maxPercent).Round(2),
	}

	daysLate := daysBetween(dueDate, actualDate)
	if daysLate <= 0 {
		p.PenaltyAmount = decimal.Zero
		p.Explanation = fmt.Sprintf("Return was %s on time; no %s penalty applies.",
			verb, penaltyNoun(kind))
		return p, nil
	}

	p.DaysLate = daysLate
	p.MonthsLate = (daysLate + daysPerStatutoryMonth - 1) / daysPerStatutoryMonth
	if p.MonthsLate < 1 {
		p.MonthsLate = 1
	}

	raw := taxBase.
		Mul(monthlyRate).
		Mul(decimal.NewFromInt(int64(p.MonthsLate))).
		Round(2)

	if raw.GreaterThan(p.MaximumPenalty) {
		p.PenaltyAmount = p.MaximumPenalty
		p.CappedAtMax = true
		p.Explanation = fmt.Sprintf(
			"%s penalty of %s per month for %d months late would be %s, capped at the maximum of %s (%s%% of %s).",
			penaltyLabel(kind),
			monthlyRate.Mul(decimal.NewFromInt(100)).String()+"%",
			p.MonthsLate,
			formatMoney(raw),
			formatMoney(p.MaximumPenalty),
			maxPercent.Mul(decimal.NewFromInt(100)),
			formatMoney(taxBase),
		)
	} else {
		p.PenaltyAmount = raw
		p.Explanation = fmt.Sprintf(
			"%s penalty: %s%% per month on %s for %d month(s) late (%d days) = %s.",
			penaltyLabel(kind),
			monthlyRate.Mul(decimal.NewFromInt(100)),
			formatMoney(taxBase),
			p.MonthsLate,
			daysLate,
			formatMoney(raw),
		)
	}

	return p, nil
}

// ApplyCombinedCap enforces the combined ceiling on late-filing and
// late-payment penalties assessed against the same tax base. When the two
// individually capped penalties together exceed combinedCapPercent of the
// base, the later-computed (late-payment) penalty is reduced to fit and an
// explanatory note records the reduction.
func ApplyCombinedCap(filing, payment LatePenalty, taxBase, combinedCapPercent decimal.Decimal) CombinedPenalties {
	combined := CombinedPenalties{
		LateFiling:  filing,
		LatePayment: payment,
	}

	cap := taxBase.Mul(combinedCapPercent).Round(2)
	total := filing.PenaltyAmount.Add(payment.PenaltyAmount)

	if total.LessThanOrEqual(cap) {
		combined.TotalPenalty = total
		return combined
	}

	reduced := cap.Sub(filing.PenaltyAmount)
	if reduced.IsNegative() {
		reduced = decimal.Zero
	}
	originalPayment := payment.PenaltyAmount
	combined.LatePayment.PenaltyAmount = reduced
	combined.TotalPenalty = filing.PenaltyAmount.Add(reduced)
	combined.CombinedCapApplied = true
	combined.CombinedCapExplanation = fmt.Sprintf(
		"Combined late-filing and late-payment penalties are limited to %s%% of the tax base (%s). The late-payment penalty was reduced from %s to %s so the total of %s stays within the combined cap.",
		combinedCapPercent.Mul(decimal.NewFromInt(100)),
		formatMoney(cap),
		formatMoney(originalPayment),
		formatMoney(reduced),
		formatMoney(combined.TotalPenalty),
	)

	return combined
}

func penaltyLabel(kind models.PenaltyType) string {
	switch kind {
	case models.PenaltyLateFiling:
		return "Late-filing"
	case models.PenaltyLatePayment:
		return "Late-payment"
	case models.PenaltyEstimatedTax:
		return "Estimated-tax"
	default:
		return "Combined"
	}
}

func penaltyNoun(kind models.PenaltyType) string {
	switch kind {
	case models.PenaltyLateFiling:
		return "late-filing"
	case models.PenaltyLatePayment:
		return "late-payment"
	default:
		return "late"
	}
}
