package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RateKind identifies which configured rate a lookup resolves.
type RateKind string

const (
	RateInterest     RateKind = "INTEREST"
	RateLateFiling   RateKind = "LATE_FILING"
	RateLatePayment  RateKind = "LATE_PAYMENT"
	RateEstimatedTax RateKind = "ESTIMATED_TAX"
	RateMunicipal    RateKind = "MUNICIPAL"
)

// Valid reports whether the value is a member of the closed rate-kind set.
func (k RateKind) Valid() bool {
	switch k {
	case RateInterest, RateLateFiling, RateLatePayment, RateEstimatedTax, RateMunicipal:
		return true
	}
	return false
}

// TaxRate is one configured rate with temporal validity. Rate is a decimal
// fraction (0.02 for 2%), never a [0,100] percentage. A nil EffectiveTo
// means the rate is currently active.
type TaxRate struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      string          `json:"tenantId"`
	TaxYear       int             `json:"taxYear"`
	Kind          RateKind        `json:"rateKind"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveFrom time.Time       `json:"effectiveFrom"`
	EffectiveTo   *time.Time      `json:"effectiveTo,omitempty"`
	Description   string          `json:"description,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}
