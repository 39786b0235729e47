package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quarter identifies one of the four estimated-payment quarters.
type Quarter string

const (
	Q1 Quarter = "Q1"
	Q2 Quarter = "Q2"
	Q3 Quarter = "Q3"
	Q4 Quarter = "Q4"
)

// Quarters lists the estimated-payment quarters in chronological order.
var Quarters = [4]Quarter{Q1, Q2, Q3, Q4}

// Valid reports whether the value is a member of the closed Quarter set.
func (q Quarter) Valid() bool {
	switch q {
	case Q1, Q2, Q3, Q4:
		return true
	}
	return false
}

// CalculationMethod is how the quarterly requirement was derived.
type CalculationMethod string

const (
	MethodStandard         CalculationMethod = "STANDARD"
	MethodAnnualizedIncome CalculationMethod = "ANNUALIZED_INCOME"
)

// Valid reports whether the value is a member of the closed set.
func (m CalculationMethod) Valid() bool {
	return m == MethodStandard || m == MethodAnnualizedIncome
}

// SafeHarborEvaluation is the result of testing a return against the two
// statutory estimated-tax safe harbors. When AnySafeHarborMet is true no
// estimated-tax penalty is due regardless of quarterly underpayments.
type SafeHarborEvaluation struct {
	SafeHarbor1Met       bool            `json:"safeHarbor1Met"`
	SafeHarbor1Required  decimal.Decimal `json:"safeHarbor1Required"`
	SafeHarbor2Met       bool            `json:"safeHarbor2Met"`
	SafeHarbor2Required  decimal.Decimal `json:"safeHarbor2Required"`
	SafeHarbor2Applies   bool            `json:"safeHarbor2Applies"`
	TotalPaid            decimal.Decimal `json:"totalPaid"`
	PercentOfCurrentYear decimal.Decimal `json:"percentOfCurrentYear"`
	AGI                  decimal.Decimal `json:"agi"`
	AGIThreshold         decimal.Decimal `json:"agiThreshold"`
	AnySafeHarborMet     bool            `json:"anySafeHarborMet"`
}

// QuarterlyUnderpayment is one quarter's required versus actual estimated
// payment. Ordering is chronological; the cumulative formulation means an
// overpayment in an earlier quarter reduces the underpayment carried into
// later quarters.
type QuarterlyUnderpayment struct {
	Quarter         Quarter         `json:"quarter"`
	DueDate         time.Time       `json:"dueDate"`
	RequiredPayment decimal.Decimal `json:"requiredPayment"`
	ActualPayment   decimal.Decimal `json:"actualPayment"`
	Underpayment    decimal.Decimal `json:"underpaymentAmount"`
	DaysLate        int             `json:"daysLate"`
	PenaltyAmount   decimal.Decimal `json:"penaltyAmount"`
}

// EstimatedTaxPenalty aggregates the four quarterly underpayment rows for a
// return and year. TotalPenalty is the sum of the quarterly penalties unless
// a safe harbor is met, in which case it is zero.
type EstimatedTaxPenalty struct {
	TaxYear         int                     `json:"taxYear"`
	Method          CalculationMethod       `json:"calculationMethod"`
	AnnualLiability decimal.Decimal         `json:"annualLiability"`
	SafeHarbor      SafeHarborEvaluation    `json:"safeHarbor"`
	Underpayments   []QuarterlyUnderpayment `json:"quarterlyUnderpayments"`
	TotalPenalty    decimal.Decimal         `json:"totalPenaltyAmount"`
}
