package services

import (
	"context"
	"fmt"
	"time"

	"github.com/civitax/engine/internal/config"
	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AssessPenaltiesInput describes one late-filing plus late-payment
// assessment. Monthly rates are decimal fractions; leave them nil to resolve
// the configured LATE_FILING and LATE_PAYMENT rates for the tax year.
// MaxPercent caps each individual penalty; nil uses the combined cap
// fraction as the individual ceiling.
type AssessPenaltiesInput struct {
	TenantID     string
	ReturnID     string
	TaxYear      int
	TaxDueDate   time.Time
	FiledDate    time.Time
	PaidDate     time.Time
	TaxDue       decimal.Decimal
	UnpaidAmount decimal.Decimal
	FilingRate   *decimal.Decimal
	PaymentRate  *decimal.Decimal
	MaxPercent   *decimal.Decimal
	CreatedBy    string
	Persist      bool
}

// AssessmentResult is a full penalty assessment: both penalties after the
// combined cap, plus the rows persisted when persistence was requested.
type AssessmentResult struct {
	Combined  engine.CombinedPenalties
	Persisted []models.Penalty
}

// PenaltyService defines the interface for penalty assessment operations.
type PenaltyService interface {
	// AssessLatePenalties evaluates both late penalties for a return,
	// applies the combined cap, and optionally persists the assessment.
	// Returns engine.ErrNegativeAmount for bad inputs, ErrRateNotFound when
	// rate resolution was requested and no rate is configured, and error
	// for database failures.
	AssessLatePenalties(ctx context.Context, input AssessPenaltiesInput) (*AssessmentResult, error)

	// ListPenalties returns every penalty assessed against a return,
	// oldest first. Returns empty slice if none (not an error).
	ListPenalties(ctx context.Context, tenantID, returnID string) ([]models.Penalty, error)
}

// penaltyService is the concrete implementation of PenaltyService.
type penaltyService struct {
	repo  repository.PenaltyRepository
	rates RateService
	cfg   config.TaxConfig
	log   *logger.Logger
}

// NewPenaltyService creates a new instance of PenaltyService.
func NewPenaltyService(repo repository.PenaltyRepository, rates RateService, cfg config.TaxConfig, log *logger.Logger) PenaltyService {
	return &penaltyService{
		repo:  repo,
		rates: rates,
		cfg:   cfg,
		log:   log,
	}
}

func (s *penaltyService) AssessLatePenalties(ctx context.Context, input AssessPenaltiesInput) (*AssessmentResult, error) {
	filingRate, err := s.monthlyRate(ctx, input.FilingRate, input.TenantID, input.TaxYear, models.RateLateFiling)
	if err != nil {
		return nil, err
	}
	paymentRate, err := s.monthlyRate(ctx, input.PaymentRate, input.TenantID, input.TaxYear, models.RateLatePayment)
	if err != nil {
		return nil, err
	}

	maxPercent := s.cfg.CombinedCapPercent
	if input.MaxPercent != nil {
		maxPercent = *input.MaxPercent
	}

	s.log.Info("Assessing late penalties", map[string]interface{}{
		"tenant_id":     input.TenantID,
		"return_id":     input.ReturnID,
		"tax_due":       input.TaxDue.String(),
		"unpaid_amount": input.UnpaidAmount.String(),
	})

	filing, err := engine.CalculateLateFiling(input.TaxDueDate, input.FiledDate, input.TaxDue, filingRate, maxPercent)
	if err != nil {
		return nil, err
	}
	payment, err := engine.CalculateLatePayment(input.TaxDueDate, input.PaidDate, input.UnpaidAmount, paymentRate, maxPercent)
	if err != nil {
		return nil, err
	}

	combined := engine.ApplyCombinedCap(filing, payment, input.TaxDue, s.cfg.CombinedCapPercent)
	result := &AssessmentResult{Combined: combined}

	if !input.Persist {
		return result, nil
	}

	persisted, err := s.persistAssessment(ctx, input, combined)
	if err != nil {
		return nil, err
	}
	result.Persisted = persisted

	return result, nil
}

// persistAssessment inserts one penalty row per nonzero penalty, skipping
// types already assessed against the return.
func (s *penaltyService) persistAssessment(ctx context.Context, input AssessPenaltiesInput, combined engine.CombinedPenalties) ([]models.Penalty, error) {
	now := time.Now().UTC()
	var persisted []models.Penalty

	rows := []struct {
		evaluated  engine.LatePenalty
		actualDate time.Time
	}{
		{combined.LateFiling, input.FiledDate},
		{combined.LatePayment, input.PaidDate},
	}

	for _, row := range rows {
		if !row.evaluated.PenaltyAmount.IsPositive() {
			continue
		}

		exists, err := s.repo.ExistsActive(ctx, input.TenantID, input.ReturnID, row.evaluated.Type)
		if err != nil {
			return nil, fmt.Errorf("failed to check existing penalties: %w", err)
		}
		if exists {
			s.log.Warn("Penalty already assessed, skipping persist", map[string]interface{}{
				"return_id":    input.ReturnID,
				"penalty_type": row.evaluated.Type,
			})
			continue
		}

		actual := row.actualDate
		penalty := models.Penalty{
			ID:             uuid.New(),
			TenantID:       input.TenantID,
			ReturnID:       input.ReturnID,
			Type:           row.evaluated.Type,
			AssessmentDate: now,
			TaxDueDate:     input.TaxDueDate,
			ActualDate:     &actual,
			MonthsLate:     row.evaluated.MonthsLate,
			UnpaidTax:      row.evaluated.TaxBase,
			PenaltyRate:    row.evaluated.MonthlyRate,
			PenaltyAmount:  row.evaluated.PenaltyAmount,
			MaximumPenalty: row.evaluated.MaximumPenalty,
			AbatedAmount:   decimal.Zero,
			CreatedBy:      input.CreatedBy,
			CreatedAt:      now,
			UpdatedAt:      now,
		}

		if err := s.repo.Insert(ctx, &penalty); err != nil {
			s.log.Error("Failed to persist penalty", err, map[string]interface{}{
				"return_id":    input.ReturnID,
				"penalty_type": penalty.Type,
			})
			return nil, fmt.Errorf("failed to persist penalty: %w", err)
		}
		persisted = append(persisted, penalty)
	}

	return persisted, nil
}

func (s *penaltyService) ListPenalties(ctx context.Context, tenantID, returnID string) ([]models.Penalty, error) {
	penalties, err := s.repo.ListByReturn(ctx, tenantID, returnID)
	if err != nil {
		s.log.Error("Failed to list penalties", err, map[string]interface{}{
			"tenant_id": tenantID,
			"return_id": returnID,
		})
		return nil, fmt.Errorf("failed to list penalties: %w", err)
	}

	if penalties == nil {
		penalties = []models.Penalty{}
	}
	return penalties, nil
}

// monthlyRate prefers the request-supplied rate and otherwise resolves the
// configured rate for the penalty kind.
func (s *penaltyService) monthlyRate(ctx context.Context, supplied *decimal.Decimal, tenantID string, taxYear int, kind models.RateKind) (decimal.Decimal, error) {
	if supplied != nil {
		return *supplied, nil
	}

	rate, err := s.rates.ResolveRate(ctx, tenantID, taxYear, kind)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s rate lookup: %w", kind, err)
	}
	return rate, nil
}
