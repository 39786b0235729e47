package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// NOLVintage is one tax year's net-operating-loss carryforward tranche.
//
// Conservation invariant, maintained after every ledger operation:
//
//	OriginalAmount = PreviouslyUsed + Expired + AvailableThisYear
//
// and after consumption RemainingForFuture = AvailableThisYear - UsedThisYear.
// Vintages are consumed strictly oldest origin year first.
type NOLVintage struct {
	ID                 uuid.UUID       `json:"id"`
	BusinessID         string          `json:"businessId"`
	TaxYear            int             `json:"taxYear"`
	OriginalAmount     decimal.Decimal `json:"originalAmount"`
	PreviouslyUsed     decimal.Decimal `json:"previouslyUsed"`
	Expired            decimal.Decimal `json:"expiredAmount"`
	AvailableThisYear  decimal.Decimal `json:"availableThisYear"`
	UsedThisYear       decimal.Decimal `json:"usedThisYear"`
	RemainingForFuture decimal.Decimal `json:"remainingForFuture"`
	// ExpirationDate is nil for vintages that carry forward indefinitely
	// (post-TCJA origin years).
	ExpirationDate  *time.Time      `json:"expirationDate,omitempty"`
	IsCarriedBack   bool            `json:"isCarriedBack"`
	CarrybackAmount decimal.Decimal `json:"carrybackAmount"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

// Conserved reports whether the vintage satisfies the conservation invariant.
func (v *NOLVintage) Conserved() bool {
	return v.OriginalAmount.Equal(v.PreviouslyUsed.Add(v.Expired).Add(v.AvailableThisYear))
}

// NOLSchedule is one tax year's aggregate NOL position for a business,
// composed from its ordered vintages.
type NOLSchedule struct {
	BusinessID             string          `json:"businessId"`
	TaxYear                int             `json:"taxYear"`
	BeginningBalance       decimal.Decimal `json:"beginningBalance"`
	GeneratedNOL           decimal.Decimal `json:"generatedNol"`
	TotalAvailable         decimal.Decimal `json:"totalAvailableNol"`
	LimitationPercentage   decimal.Decimal `json:"limitationPercentage"`
	NOLDeduction           decimal.Decimal `json:"nolDeduction"`
	ExpiredAmount          decimal.Decimal `json:"expiredAmount"`
	EndingBalance          decimal.Decimal `json:"endingBalance"`
	TaxableIncomeBeforeNOL decimal.Decimal `json:"taxableIncomeBeforeNol"`
	TaxableIncomeAfterNOL  decimal.Decimal `json:"taxableIncomeAfterNol"`
	Vintages               []NOLVintage    `json:"vintages"`
}

// AlertSeverity grades an NOL expiration alert.
type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "CRITICAL"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityInfo     AlertSeverity = "INFO"
)

// Valid reports whether the value is a member of the closed severity set.
func (s AlertSeverity) Valid() bool {
	return s == SeverityCritical || s == SeverityWarning || s == SeverityInfo
}

// NOLAlert warns that a vintage's remaining balance is approaching its
// expiration date. Severity derives from YearsUntilExpiration.
type NOLAlert struct {
	NOLID                uuid.UUID       `json:"nolId"`
	TaxYear              int             `json:"taxYear"`
	NOLBalance           decimal.Decimal `json:"nolBalance"`
	ExpirationDate       time.Time       `json:"expirationDate"`
	YearsUntilExpiration int             `json:"yearsUntilExpiration"`
	SeverityLevel        AlertSeverity   `json:"severityLevel"`
	AlertMessage         string          `json:"alertMessage"`
	Dismissed            bool            `json:"dismissed"`
}
