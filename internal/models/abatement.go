package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AbatementStatus tracks the lifecycle of a penalty abatement request.
// A request starts PENDING and transitions exactly once, either to a
// reviewed terminal status (APPROVED, PARTIAL, DENIED) or to WITHDRAWN by
// the requester before review.
type AbatementStatus string

const (
	AbatementPending   AbatementStatus = "PENDING"
	AbatementApproved  AbatementStatus = "APPROVED"
	AbatementPartial   AbatementStatus = "PARTIAL"
	AbatementDenied    AbatementStatus = "DENIED"
	AbatementWithdrawn AbatementStatus = "WITHDRAWN"
)

// Valid reports whether the value is a member of the closed status set.
func (s AbatementStatus) Valid() bool {
	switch s {
	case AbatementPending, AbatementApproved, AbatementPartial, AbatementDenied, AbatementWithdrawn:
		return true
	}
	return false
}

// Terminal reports whether the status permits no further transitions.
func (s AbatementStatus) Terminal() bool {
	return s != AbatementPending
}

// AbatementReason is the statutory ground claimed for waiving a penalty.
type AbatementReason string

const (
	ReasonDeath               AbatementReason = "DEATH"
	ReasonIllness             AbatementReason = "ILLNESS"
	ReasonDisaster            AbatementReason = "DISASTER"
	ReasonErroneousAdvice     AbatementReason = "ERRONEOUS_ADVICE"
	ReasonFirstTime           AbatementReason = "FIRST_TIME"
	ReasonReasonableCause     AbatementReason = "REASONABLE_CAUSE"
	ReasonAdministrativeError AbatementReason = "ADMINISTRATIVE_ERROR"
	ReasonOther               AbatementReason = "OTHER"
)

// Valid reports whether the value is a member of the closed reason set.
func (r AbatementReason) Valid() bool {
	switch r {
	case ReasonDeath, ReasonIllness, ReasonDisaster, ReasonErroneousAdvice,
		ReasonFirstTime, ReasonReasonableCause, ReasonAdministrativeError, ReasonOther:
		return true
	}
	return false
}

// PenaltyAbatement is a request to waive an assessed penalty.
//
// FIRST_TIME eligibility (no abatement in the lookback window) is verified
// by the engine at review time, not self-declared by the filer.
type PenaltyAbatement struct {
	ID                   uuid.UUID       `json:"id"`
	PenaltyID            uuid.UUID       `json:"penaltyId"`
	FilerID              string          `json:"filerId"`
	RequestedAmount      decimal.Decimal `json:"requestedAmount"`
	Reason               AbatementReason `json:"reason"`
	Explanation          string          `json:"explanation"`
	Status               AbatementStatus `json:"status"`
	ApprovedAmount       decimal.Decimal `json:"approvedAmount"`
	ReviewedBy           string          `json:"reviewedBy,omitempty"`
	ReviewNotes          string          `json:"reviewNotes,omitempty"`
	ReviewedAt           *time.Time      `json:"reviewedAt,omitempty"`
	IsFirstTimeAbatement bool            `json:"isFirstTimeAbatement"`
	CreatedAt            time.Time       `json:"createdAt"`
	UpdatedAt            time.Time       `json:"updatedAt"`
}
