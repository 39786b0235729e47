package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PenaltyType identifies which statutory penalty a Penalty row represents.
type PenaltyType string

const (
	PenaltyLateFiling   PenaltyType = "LATE_FILING"
	PenaltyLatePayment  PenaltyType = "LATE_PAYMENT"
	PenaltyEstimatedTax PenaltyType = "ESTIMATED_TAX"
	PenaltyCombined     PenaltyType = "COMBINED"
)

// Valid reports whether the value is a member of the closed PenaltyType set.
func (t PenaltyType) Valid() bool {
	switch t {
	case PenaltyLateFiling, PenaltyLatePayment, PenaltyEstimatedTax, PenaltyCombined:
		return true
	}
	return false
}

// Penalty is one assessed penalty instance for a return.
//
// A penalty is created when a return becomes overdue or underpaid, mutated
// only by an abatement review, and immutable once paid in full; corrective
// rows are inserted instead of updating paid rows so the audit history is
// preserved. An abated penalty keeps its original PenaltyAmount but is
// excluded from amounts owed.
type Penalty struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       string          `json:"tenantId,omitempty"`
	ReturnID       string          `json:"returnId"`
	Type           PenaltyType     `json:"penaltyType"`
	AssessmentDate time.Time       `json:"assessmentDate"`
	TaxDueDate     time.Time       `json:"taxDueDate"`
	ActualDate     *time.Time      `json:"actualDate,omitempty"`
	MonthsLate     int             `json:"monthsLate"`
	UnpaidTax      decimal.Decimal `json:"unpaidTaxAmount"`
	PenaltyRate    decimal.Decimal `json:"penaltyRate"`
	PenaltyAmount  decimal.Decimal `json:"penaltyAmount"`
	MaximumPenalty decimal.Decimal `json:"maximumPenalty"`
	IsAbated       bool            `json:"isAbated"`
	AbatedAmount   decimal.Decimal `json:"abatedAmount"`
	AbatementDate  *time.Time      `json:"abatementDate,omitempty"`
	PaidInFull     bool            `json:"paidInFull"`
	CreatedBy      string          `json:"createdBy,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// AmountOwed is the penalty amount still counted toward the filer's balance.
// Abated penalties retain PenaltyAmount for the record but owe only the
// unabated remainder.
func (p *Penalty) AmountOwed() decimal.Decimal {
	if !p.IsAbated {
		return p.PenaltyAmount
	}
	owed := p.PenaltyAmount.Sub(p.AbatedAmount)
	if owed.IsNegative() {
		return decimal.Zero
	}
	return owed
}
