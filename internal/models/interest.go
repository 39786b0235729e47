package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CompoundingFrequency is fixed to quarterly for this system; the field
// exists so persisted snapshots are self-describing.
type CompoundingFrequency string

const CompoundingQuarterly CompoundingFrequency = "QUARTERLY"

// QuarterlyInterest is one quarter's compounding step in an interest
// calculation. Ordering is chronological and significant: each quarter's
// BeginningBalance equals the prior quarter's EndingBalance.
type QuarterlyInterest struct {
	Quarter          string          `json:"quarter"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	Days             int             `json:"daysInPeriod"`
	BeginningBalance decimal.Decimal `json:"beginningBalance"`
	Rate             decimal.Decimal `json:"rate"`
	InterestAmount   decimal.Decimal `json:"interestAmount"`
	EndingBalance    decimal.Decimal `json:"endingBalance"`
}

// InterestCalculation covers one date range for a return. It is a pure
// function of its inputs; rows are persisted only as optional snapshots.
//
// Invariants: the quarterly InterestAmounts sum to TotalInterest, and each
// quarter's EndingBalance is BeginningBalance plus InterestAmount.
type InterestCalculation struct {
	StartDate     time.Time            `json:"startDate"`
	EndDate       time.Time            `json:"endDate"`
	UnpaidTax     decimal.Decimal      `json:"unpaidTaxAmount"`
	AnnualRate    decimal.Decimal      `json:"annualInterestRate"`
	TotalDays     int                  `json:"totalDays"`
	TotalInterest decimal.Decimal      `json:"totalInterestAmount"`
	Compounding   CompoundingFrequency `json:"compoundingFrequency"`
	Quarters      []QuarterlyInterest  `json:"quarterlyBreakdown,omitempty"`
}
