package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/civitax/engine/internal/database"
	"github.com/civitax/engine/internal/models"
	"github.com/jackc/pgx/v5"
)

// RateRepository defines the interface for configured tax rate lookups.
type RateRepository interface {
	// FindRate resolves the rate configured for a tenant, tax year and kind.
	// When several rows match, the most recently effective one wins.
	// Returns nil, nil if no rate is configured (not an error).
	// Returns error only for actual database failures.
	FindRate(ctx context.Context, tenantID string, taxYear int, kind models.RateKind) (*models.TaxRate, error)
}

// rateRepository is the concrete implementation of RateRepository.
type rateRepository struct {
	db *database.Database
}

// NewRateRepository creates a new instance of RateRepository.
func NewRateRepository(db *database.Database) RateRepository {
	return &rateRepository{db: db}
}

// FindRate queries the tax_rates table for the effective rate row.
func (r *rateRepository) FindRate(ctx context.Context, tenantID string, taxYear int, kind models.RateKind) (*models.TaxRate, error) {
	query := `
		SELECT
			id,
			tenant_id,
			tax_year,
			rate_kind,
			rate,
			effective_from,
			effective_to,
			description,
			created_at,
			updated_at
		FROM tax_rates
		WHERE tenant_id = $1
		  AND tax_year = $2
		  AND rate_kind = $3
		ORDER BY effective_from DESC
		LIMIT 1
	`

	var rate models.TaxRate
	err := r.db.Pool.QueryRow(ctx, query, tenantID, taxYear, string(kind)).Scan(
		&rate.ID,
		&rate.TenantID,
		&rate.TaxYear,
		&rate.Kind,
		&rate.Rate,
		&rate.EffectiveFrom,
		&rate.EffectiveTo,
		&rate.Description,
		&rate.CreatedAt,
		&rate.UpdatedAt,
	)

	// No configured rate is not a repository-level error.
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query rate (tenant=%s, year=%d, kind=%s): %w",
			tenantID, taxYear, kind, err)
	}

	return &rate, nil
}
