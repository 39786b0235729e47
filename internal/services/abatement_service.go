package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civitax/engine/internal/config"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service-level errors for the abatement lifecycle.
var (
	ErrAbatementNotFound        = errors.New("abatement request not found")
	ErrAbatementAlreadyReviewed = errors.New("abatement request has already been resolved")
	ErrInsufficientExplanation  = errors.New("explanation does not meet the minimum length")
	ErrInvalidReason            = errors.New("invalid abatement reason")
	ErrInvalidApprovedAmount    = errors.New("approved amount must be between zero and the requested amount")
)

// SubmitAbatementInput is a filer's request to waive a penalty.
type SubmitAbatementInput struct {
	PenaltyID       uuid.UUID
	FilerID         string
	RequestedAmount decimal.Decimal
	Reason          models.AbatementReason
	Explanation     string
}

// ReviewAbatementInput records a reviewer's decision. The resulting status
// derives from ApprovedAmount: the full requested amount is APPROVED, a
// partial amount is PARTIAL, zero is DENIED.
type ReviewAbatementInput struct {
	AbatementID    uuid.UUID
	ApprovedAmount decimal.Decimal
	ReviewedBy     string
	ReviewNotes    string
}

// AbatementService defines the interface for the penalty abatement lifecycle.
type AbatementService interface {
	// Submit files a new abatement request in PENDING status.
	// Returns ErrInvalidReason or ErrInsufficientExplanation for bad inputs.
	Submit(ctx context.Context, input SubmitAbatementInput) (*models.PenaltyAbatement, error)

	// Get fetches one abatement request.
	// Returns ErrAbatementNotFound if it does not exist.
	Get(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error)

	// Review resolves a pending request exactly once. FIRST_TIME requests
	// are verified against the lookback window and denied when a prior
	// granted abatement exists. A granted review marks the underlying
	// penalty abated.
	// Returns ErrAbatementNotFound, ErrAbatementAlreadyReviewed or
	// ErrInvalidApprovedAmount.
	Review(ctx context.Context, input ReviewAbatementInput) (*models.PenaltyAbatement, error)

	// Withdraw lets the requester retract a request that has not yet been
	// reviewed.
	// Returns ErrAbatementNotFound or ErrAbatementAlreadyReviewed.
	Withdraw(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error)
}

// abatementService is the concrete implementation of AbatementService.
type abatementService struct {
	repo      repository.AbatementRepository
	penalties repository.PenaltyRepository
	cfg       config.TaxConfig
	log       *logger.Logger
}

// NewAbatementService creates a new instance of AbatementService.
func NewAbatementService(repo repository.AbatementRepository, penalties repository.PenaltyRepository, cfg config.TaxConfig, log *logger.Logger) AbatementService {
	return &abatementService{
		repo:      repo,
		penalties: penalties,
		cfg:       cfg,
		log:       log,
	}
}

func (s *abatementService) Submit(ctx context.Context, input SubmitAbatementInput) (*models.PenaltyAbatement, error) {
	if !input.Reason.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, input.Reason)
	}
	if len(input.Explanation) < s.cfg.MinAbatementExplanationLength {
		return nil, fmt.Errorf("%w: need at least %d characters, got %d",
			ErrInsufficientExplanation, s.cfg.MinAbatementExplanationLength, len(input.Explanation))
	}
	if !input.RequestedAmount.IsPositive() {
		return nil, fmt.Errorf("%w: requested amount %s", ErrInvalidApprovedAmount, input.RequestedAmount)
	}

	now := time.Now().UTC()
	abatement := &models.PenaltyAbatement{
		ID:              uuid.New(),
		PenaltyID:       input.PenaltyID,
		FilerID:         input.FilerID,
		RequestedAmount: input.RequestedAmount,
		Reason:          input.Reason,
		Explanation:     input.Explanation,
		Status:          models.AbatementPending,
		ApprovedAmount:  decimal.Zero,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repo.Insert(ctx, abatement); err != nil {
		s.log.Error("Failed to submit abatement", err, map[string]interface{}{
			"penalty_id": input.PenaltyID,
			"filer_id":   input.FilerID,
		})
		return nil, fmt.Errorf("failed to submit abatement: %w", err)
	}

	s.log.Info("Abatement request submitted", map[string]interface{}{
		"abatement_id": abatement.ID,
		"penalty_id":   input.PenaltyID,
		"reason":       input.Reason,
	})

	return abatement, nil
}

func (s *abatementService) Get(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error) {
	abatement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.log.Error("Failed to fetch abatement", err, map[string]interface{}{
			"abatement_id": id,
		})
		return nil, fmt.Errorf("failed to fetch abatement: %w", err)
	}
	if abatement == nil {
		return nil, ErrAbatementNotFound
	}
	return abatement, nil
}

func (s *abatementService) Review(ctx context.Context, input ReviewAbatementInput) (*models.PenaltyAbatement, error) {
	abatement, err := s.Get(ctx, input.AbatementID)
	if err != nil {
		return nil, err
	}
	if abatement.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", ErrAbatementAlreadyReviewed, abatement.Status)
	}
	if input.ApprovedAmount.IsNegative() || input.ApprovedAmount.GreaterThan(abatement.RequestedAmount) {
		return nil, fmt.Errorf("%w: requested %s, decided %s",
			ErrInvalidApprovedAmount, abatement.RequestedAmount, input.ApprovedAmount)
	}

	now := time.Now().UTC()
	approved := input.ApprovedAmount
	notes := input.ReviewNotes

	// FIRST_TIME eligibility is verified here, at review time, never taken
	// from the filer's own declaration.
	if abatement.Reason == models.ReasonFirstTime {
		eligible, err := s.firstTimeEligible(ctx, abatement.FilerID, now)
		if err != nil {
			return nil, err
		}
		abatement.IsFirstTimeAbatement = eligible
		if !eligible {
			approved = decimal.Zero
			notes = appendNote(notes, fmt.Sprintf(
				"First-time abatement denied: a prior abatement was granted within the last %d years.",
				s.cfg.FirstTimeAbatementLookbackYears))
		}
	}

	switch {
	case approved.Equal(abatement.RequestedAmount):
		abatement.Status = models.AbatementApproved
	case approved.IsPositive():
		abatement.Status = models.AbatementPartial
	default:
		abatement.Status = models.AbatementDenied
	}

	abatement.ApprovedAmount = approved
	abatement.ReviewedBy = input.ReviewedBy
	abatement.ReviewNotes = notes
	abatement.ReviewedAt = &now
	abatement.UpdatedAt = now

	if err := s.repo.Update(ctx, abatement); err != nil {
		s.log.Error("Failed to record abatement review", err, map[string]interface{}{
			"abatement_id": abatement.ID,
		})
		return nil, fmt.Errorf("failed to record abatement review: %w", err)
	}

	if approved.IsPositive() {
		penalty := models.Penalty{
			ID:            abatement.PenaltyID,
			IsAbated:      true,
			AbatedAmount:  approved,
			AbatementDate: &now,
		}
		if err := s.penalties.UpdateAbatement(ctx, &penalty); err != nil {
			s.log.Error("Failed to mark penalty abated", err, map[string]interface{}{
				"abatement_id": abatement.ID,
				"penalty_id":   abatement.PenaltyID,
			})
			return nil, fmt.Errorf("failed to mark penalty abated: %w", err)
		}
	}

	s.log.Info("Abatement request reviewed", map[string]interface{}{
		"abatement_id":    abatement.ID,
		"status":          abatement.Status,
		"approved_amount": approved.String(),
	})

	return abatement, nil
}

func (s *abatementService) Withdraw(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error) {
	abatement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if abatement.Status.Terminal() {
		return nil, fmt.Errorf("%w: status %s", ErrAbatementAlreadyReviewed, abatement.Status)
	}

	abatement.Status = models.AbatementWithdrawn
	abatement.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, abatement); err != nil {
		s.log.Error("Failed to withdraw abatement", err, map[string]interface{}{
			"abatement_id": id,
		})
		return nil, fmt.Errorf("failed to withdraw abatement: %w", err)
	}

	s.log.Info("Abatement request withdrawn", map[string]interface{}{
		"abatement_id": id,
	})

	return abatement, nil
}

// firstTimeEligible reports whether the filer has had no granted abatement
// inside the lookback window.
func (s *abatementService) firstTimeEligible(ctx context.Context, filerID string, asOf time.Time) (bool, error) {
	since := asOf.AddDate(-s.cfg.FirstTimeAbatementLookbackYears, 0, 0)
	count, err := s.repo.CountGrantedSince(ctx, filerID, since)
	if err != nil {
		s.log.Error("Failed to check first-time eligibility", err, map[string]interface{}{
			"filer_id": filerID,
		})
		return false, fmt.Errorf("failed to check first-time eligibility: %w", err)
	}
	return count == 0, nil
}

func appendNote(notes, extra string) string {
	if notes == "" {
		return extra
	}
	return notes + " " + extra
}
