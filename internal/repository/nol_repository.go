package repository

import (
	"context"
	"fmt"

	"github.com/civitax/engine/internal/database"
	"github.com/civitax/engine/internal/models"
)

// NOLRepository defines the interface for the persisted NOL vintage ledger.
type NOLRepository interface {
	// ListVintages returns a business's vintages ordered oldest origin
	// year first, the order in which they are consumed.
	ListVintages(ctx context.Context, businessID string) ([]models.NOLVintage, error)

	// InsertVintage stores a newly recorded loss year.
	InsertVintage(ctx context.Context, vintage *models.NOLVintage) error

	// SaveVintages writes an updated ledger snapshot in a single
	// transaction. Either every vintage row is updated or none is.
	SaveVintages(ctx context.Context, vintages []models.NOLVintage) error
}

// nolRepository is the concrete implementation of NOLRepository.
type nolRepository struct {
	db *database.Database
}

// NewNOLRepository creates a new instance of NOLRepository.
func NewNOLRepository(db *database.Database) NOLRepository {
	return &nolRepository{db: db}
}

const nolColumns = `
	id, business_id, tax_year, original_amount, previously_used,
	expired_amount, available_this_year, used_this_year, remaining_for_future,
	expiration_date, is_carried_back, carryback_amount, created_at, updated_at
`

func (r *nolRepository) ListVintages(ctx context.Context, businessID string) ([]models.NOLVintage, error) {
	query := `
		SELECT ` + nolColumns + `
		FROM nol_vintages
		WHERE business_id = $1
		ORDER BY tax_year ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to query vintages for business %s: %w", businessID, err)
	}
	defer rows.Close()

	var vintages []models.NOLVintage
	for rows.Next() {
		var v models.NOLVintage
		err := rows.Scan(
			&v.ID,
			&v.BusinessID,
			&v.TaxYear,
			&v.OriginalAmount,
			&v.PreviouslyUsed,
			&v.Expired,
			&v.AvailableThisYear,
			&v.UsedThisYear,
			&v.RemainingForFuture,
			&v.ExpirationDate,
			&v.IsCarriedBack,
			&v.CarrybackAmount,
			&v.CreatedAt,
			&v.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan vintage row: %w", err)
		}
		vintages = append(vintages, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vintage rows: %w", err)
	}

	return vintages, nil
}

func (r *nolRepository) InsertVintage(ctx context.Context, vintage *models.NOLVintage) error {
	query := `
		INSERT INTO nol_vintages (` + nolColumns + `
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14
		)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		vintage.ID,
		vintage.BusinessID,
		vintage.TaxYear,
		vintage.OriginalAmount,
		vintage.PreviouslyUsed,
		vintage.Expired,
		vintage.AvailableThisYear,
		vintage.UsedThisYear,
		vintage.RemainingForFuture,
		vintage.ExpirationDate,
		vintage.IsCarriedBack,
		vintage.CarrybackAmount,
		vintage.CreatedAt,
		vintage.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert vintage for business %s year %d: %w",
			vintage.BusinessID, vintage.TaxYear, err)
	}

	return nil
}

func (r *nolRepository) SaveVintages(ctx context.Context, vintages []models.NOLVintage) error {
	if len(vintages) == 0 {
		return nil
	}

	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin vintage transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		UPDATE nol_vintages
		SET previously_used = $1,
			expired_amount = $2,
			available_this_year = $3,
			used_this_year = $4,
			remaining_for_future = $5,
			is_carried_back = $6,
			carryback_amount = $7,
			updated_at = NOW()
		WHERE id = $8
	`

	for i := range vintages {
		v := &vintages[i]
		tag, err := tx.Exec(ctx, query,
			v.PreviouslyUsed,
			v.Expired,
			v.AvailableThisYear,
			v.UsedThisYear,
			v.RemainingForFuture,
			v.IsCarriedBack,
			v.CarrybackAmount,
			v.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update vintage %s: %w", v.ID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("vintage %s not found", v.ID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit vintage transaction: %w", err)
	}

	return nil
}
