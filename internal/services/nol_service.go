package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/civitax/engine/internal/config"
	"github.com/civitax/engine/internal/engine"
	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Service-level errors for the NOL ledger.
var (
	ErrVintageNotFound = errors.New("vintage not found")
)

// ApplyDeductionInput describes one year's NOL deduction against a
// business's ledger. LimitationPercentage is in [0, 100].
type ApplyDeductionInput struct {
	BusinessID             string
	TaxYear                int
	TaxableIncomeBeforeNOL decimal.Decimal
	LimitationPercentage   decimal.Decimal
}

// NOLService defines the interface for the net-operating-loss ledger.
type NOLService interface {
	// Vintages returns a business's vintages oldest origin year first.
	// Returns empty slice if none (not an error).
	Vintages(ctx context.Context, businessID string) ([]models.NOLVintage, error)

	// Alerts derives expiration alerts for vintages with balance at stake.
	Alerts(ctx context.Context, businessID string, asOf time.Time) ([]models.NOLAlert, error)

	// AddVintage records a new loss year. The expiration date derives from
	// the origin year's statutory carryforward rule.
	// Returns engine.ErrInvalidLossAmount for a non-positive amount.
	AddVintage(ctx context.Context, businessID string, taxYear int, amount decimal.Decimal) (*models.NOLVintage, error)

	// ApplyDeduction runs the expiration sweep and FIFO consumption for a
	// year and persists the updated ledger atomically.
	// Returns engine.ErrInvalidLimitation for a bad limitation percentage.
	ApplyDeduction(ctx context.Context, input ApplyDeductionInput) (*models.NOLSchedule, error)

	// ElectCarryback records a one-time carryback election on a vintage.
	// Returns ErrVintageNotFound, engine.ErrAlreadyCarriedBack,
	// engine.ErrIneligibleVintage or engine.ErrInsufficientBalance.
	ElectCarryback(ctx context.Context, businessID string, vintageID uuid.UUID, amount decimal.Decimal) (*models.NOLVintage, error)
}

// nolService is the concrete implementation of NOLService. Ledger mutations
// for one business are serialized through a per-business mutex so a
// concurrent deduction and carryback cannot interleave between read and
// write.
type nolService struct {
	repo repository.NOLRepository
	cfg  config.TaxConfig
	log  *logger.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewNOLService creates a new instance of NOLService.
func NewNOLService(repo repository.NOLRepository, cfg config.TaxConfig, log *logger.Logger) NOLService {
	return &nolService{
		repo:  repo,
		cfg:   cfg,
		log:   log,
		locks: make(map[string]*sync.Mutex),
	}
}

// businessLock returns the mutex serializing one business's ledger writes.
func (s *nolService) businessLock(businessID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[businessID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[businessID] = lock
	}
	return lock
}

func (s *nolService) Vintages(ctx context.Context, businessID string) ([]models.NOLVintage, error) {
	vintages, err := s.repo.ListVintages(ctx, businessID)
	if err != nil {
		s.log.Error("Failed to list vintages", err, map[string]interface{}{
			"business_id": businessID,
		})
		return nil, fmt.Errorf("failed to list vintages: %w", err)
	}

	if vintages == nil {
		vintages = []models.NOLVintage{}
	}
	return vintages, nil
}

func (s *nolService) Alerts(ctx context.Context, businessID string, asOf time.Time) ([]models.NOLAlert, error) {
	vintages, err := s.Vintages(ctx, businessID)
	if err != nil {
		return nil, err
	}

	return engine.ExpirationAlerts(vintages, asOf, s.cfg.AlertCriticalYears, s.cfg.AlertWarningYears), nil
}

func (s *nolService) AddVintage(ctx context.Context, businessID string, taxYear int, amount decimal.Decimal) (*models.NOLVintage, error) {
	vintage, err := engine.NewVintage(businessID, taxYear, amount, s.expirationDate(taxYear))
	if err != nil {
		return nil, err
	}

	if err := s.repo.InsertVintage(ctx, &vintage); err != nil {
		s.log.Error("Failed to insert vintage", err, map[string]interface{}{
			"business_id": businessID,
			"tax_year":    taxYear,
		})
		return nil, fmt.Errorf("failed to insert vintage: %w", err)
	}

	s.log.Info("NOL vintage recorded", map[string]interface{}{
		"business_id": businessID,
		"tax_year":    taxYear,
		"amount":      amount.String(),
		"expires":     vintage.ExpirationDate != nil,
	})

	return &vintage, nil
}

// expirationDate derives a vintage's expiration from the statutory rule for
// its origin year. Origin years at or after the rule change carry forward
// indefinitely.
func (s *nolService) expirationDate(taxYear int) *time.Time {
	if taxYear >= s.cfg.ExpirationRuleChangeYear {
		return nil
	}
	expires := time.Date(taxYear+s.cfg.ExpirationTermYears, time.December, 31, 0, 0, 0, 0, time.UTC)
	return &expires
}

func (s *nolService) ApplyDeduction(ctx context.Context, input ApplyDeductionInput) (*models.NOLSchedule, error) {
	lock := s.businessLock(input.BusinessID)
	lock.Lock()
	defer lock.Unlock()

	vintages, err := s.Vintages(ctx, input.BusinessID)
	if err != nil {
		return nil, err
	}

	beginning := decimal.Zero
	for _, v := range vintages {
		beginning = beginning.Add(v.AvailableThisYear)
	}

	asOf := time.Date(input.TaxYear, time.December, 31, 0, 0, 0, 0, time.UTC)
	result, err := engine.ApplyNOLDeduction(vintages, input.TaxableIncomeBeforeNOL, input.LimitationPercentage, asOf)
	if err != nil {
		s.log.Warn("NOL deduction rejected", map[string]interface{}{
			"business_id": input.BusinessID,
			"error":       err.Error(),
		})
		return nil, err
	}

	// The stored ledger rolls the year forward: this year's usage folds
	// into PreviouslyUsed so the next deduction starts from a clean state.
	persisted := make([]models.NOLVintage, len(result.Vintages))
	copy(persisted, result.Vintages)
	for i := range persisted {
		v := &persisted[i]
		v.PreviouslyUsed = v.PreviouslyUsed.Add(v.UsedThisYear)
		v.AvailableThisYear = v.RemainingForFuture
		v.UsedThisYear = decimal.Zero
	}

	if err := s.repo.SaveVintages(ctx, persisted); err != nil {
		s.log.Error("Failed to persist deduction", err, map[string]interface{}{
			"business_id": input.BusinessID,
			"tax_year":    input.TaxYear,
		})
		return nil, fmt.Errorf("failed to persist deduction: %w", err)
	}

	totalAvailable := beginning.Sub(result.ExpiredAmount)
	schedule := &models.NOLSchedule{
		BusinessID:             input.BusinessID,
		TaxYear:                input.TaxYear,
		BeginningBalance:       beginning,
		GeneratedNOL:           decimal.Zero,
		TotalAvailable:         totalAvailable,
		LimitationPercentage:   input.LimitationPercentage,
		NOLDeduction:           result.NOLDeduction,
		ExpiredAmount:          result.ExpiredAmount,
		EndingBalance:          totalAvailable.Sub(result.NOLDeduction),
		TaxableIncomeBeforeNOL: input.TaxableIncomeBeforeNOL,
		TaxableIncomeAfterNOL:  result.TaxableIncomeAfterNOL,
		Vintages:               result.Vintages,
	}

	s.log.Info("NOL deduction applied", map[string]interface{}{
		"business_id":   input.BusinessID,
		"tax_year":      input.TaxYear,
		"nol_deduction": result.NOLDeduction.String(),
		"expired":       result.ExpiredAmount.String(),
	})

	return schedule, nil
}

func (s *nolService) ElectCarryback(ctx context.Context, businessID string, vintageID uuid.UUID, amount decimal.Decimal) (*models.NOLVintage, error) {
	lock := s.businessLock(businessID)
	lock.Lock()
	defer lock.Unlock()

	vintages, err := s.Vintages(ctx, businessID)
	if err != nil {
		return nil, err
	}

	var vintage *models.NOLVintage
	for i := range vintages {
		if vintages[i].ID == vintageID {
			vintage = &vintages[i]
			break
		}
	}
	if vintage == nil {
		return nil, fmt.Errorf("%w: %s", ErrVintageNotFound, vintageID)
	}

	if err := engine.ElectCarryback(vintage, amount, s.cfg.CarrybackWindowStart, s.cfg.CarrybackWindowEnd); err != nil {
		s.log.Warn("Carryback election rejected", map[string]interface{}{
			"business_id": businessID,
			"vintage_id":  vintageID,
			"error":       err.Error(),
		})
		return nil, err
	}

	if err := s.repo.SaveVintages(ctx, []models.NOLVintage{*vintage}); err != nil {
		s.log.Error("Failed to persist carryback", err, map[string]interface{}{
			"business_id": businessID,
			"vintage_id":  vintageID,
		})
		return nil, fmt.Errorf("failed to persist carryback: %w", err)
	}

	s.log.Info("Carryback elected", map[string]interface{}{
		"business_id": businessID,
		"vintage_id":  vintageID,
		"amount":      amount.String(),
	})

	return vintage, nil
}
