package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitax/engine/internal/logger"
	"github.com/civitax/engine/internal/models"
	"github.com/civitax/engine/internal/repository"
	"github.com/shopspring/decimal"
)

// Service-level errors shared by the calculation services.
var (
	ErrRateNotFound = errors.New("no rate configured")
)

// RateService resolves configured statutory rates. Rates are money-bearing
// inputs; a missing rate is always a hard error, never a silent default.
type RateService interface {
	// ResolveRate returns the configured rate fraction for a tenant, tax
	// year and rate kind.
	// Returns ErrRateNotFound if no rate is configured.
	// Returns error for database failures.
	ResolveRate(ctx context.Context, tenantID string, taxYear int, kind models.RateKind) (decimal.Decimal, error)
}

// rateService is the concrete implementation of RateService.
type rateService struct {
	repo repository.RateRepository
	log  *logger.Logger
}

// NewRateService creates a new instance of RateService.
func NewRateService(repo repository.RateRepository, log *logger.Logger) RateService {
	return &rateService{
		repo: repo,
		log:  log,
	}
}

func (s *rateService) ResolveRate(ctx context.Context, tenantID string, taxYear int, kind models.RateKind) (decimal.Decimal, error) {
	if !kind.Valid() {
		return decimal.Zero, fmt.Errorf("%w: unknown rate kind %q", ErrRateNotFound, kind)
	}

	rate, err := s.repo.FindRate(ctx, tenantID, taxYear, kind)
	if err != nil {
		s.log.Error("Failed to resolve rate", err, map[string]interface{}{
			"tenant_id": tenantID,
			"tax_year":  taxYear,
			"rate_kind": kind,
		})
		return decimal.Zero, fmt.Errorf("failed to resolve rate: %w", err)
	}

	// Repository returns nil, nil when no rate is configured.
	if rate == nil {
		s.log.Warn("No rate configured", map[string]interface{}{
			"tenant_id": tenantID,
			"tax_year":  taxYear,
			"rate_kind": kind,
		})
		return decimal.Zero, fmt.Errorf("%w: %s for tax year %d", ErrRateNotFound, kind, taxYear)
	}

	return rate.Rate, nil
}
