package repository

import (
	"context"
	"fmt"

	"github.com/civitax/engine/internal/database"
	"github.com/civitax/engine/internal/models"
)

// PenaltyRepository defines the interface for persisted penalty assessments.
type PenaltyRepository interface {
	// Insert stores a newly assessed penalty.
	Insert(ctx context.Context, penalty *models.Penalty) error

	// ListByReturn returns every penalty assessed against a return,
	// oldest assessment first.
	ListByReturn(ctx context.Context, tenantID, returnID string) ([]models.Penalty, error)

	// ExistsActive reports whether an unabated penalty of the given type
	// already exists for a return.
	ExistsActive(ctx context.Context, tenantID, returnID string, kind models.PenaltyType) (bool, error)

	// UpdateAbatement records the abated portion of a penalty.
	UpdateAbatement(ctx context.Context, penalty *models.Penalty) error
}

// penaltyRepository is the concrete implementation of PenaltyRepository.
type penaltyRepository struct {
	db *database.Database
}

// NewPenaltyRepository creates a new instance of PenaltyRepository.
func NewPenaltyRepository(db *database.Database) PenaltyRepository {
	return &penaltyRepository{db: db}
}

func (r *penaltyRepository) Insert(ctx context.Context, penalty *models.Penalty) error {
	query := `
		INSERT INTO penalties (
			id, tenant_id, return_id, penalty_type,
			assessment_date, tax_due_date, actual_date, months_late,
			unpaid_tax, penalty_rate, penalty_amount, maximum_penalty,
			is_abated, abated_amount, abatement_date, paid_in_full,
			created_by, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8,
			$9, $10, $11, $12,
			$13, $14, $15, $16,
			$17, $18, $19
		)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		penalty.ID,
		penalty.TenantID,
		penalty.ReturnID,
		string(penalty.Type),
		penalty.AssessmentDate,
		penalty.TaxDueDate,
		penalty.ActualDate,
		penalty.MonthsLate,
		penalty.UnpaidTax,
		penalty.PenaltyRate,
		penalty.PenaltyAmount,
		penalty.MaximumPenalty,
		penalty.IsAbated,
		penalty.AbatedAmount,
		penalty.AbatementDate,
		penalty.PaidInFull,
		penalty.CreatedBy,
		penalty.CreatedAt,
		penalty.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert penalty for return %s: %w", penalty.ReturnID, err)
	}

	return nil
}

func (r *penaltyRepository) ListByReturn(ctx context.Context, tenantID, returnID string) ([]models.Penalty, error) {
	query := `
		SELECT
			id, tenant_id, return_id, penalty_type,
			assessment_date, tax_due_date, actual_date, months_late,
			unpaid_tax, penalty_rate, penalty_amount, maximum_penalty,
			is_abated, abated_amount, abatement_date, paid_in_full,
			created_by, created_at, updated_at
		FROM penalties
		WHERE tenant_id = $1
		  AND return_id = $2
		ORDER BY assessment_date ASC, created_at ASC
	`

	rows, err := r.db.Pool.Query(ctx, query, tenantID, returnID)
	if err != nil {
		return nil, fmt.Errorf("failed to query penalties for return %s: %w", returnID, err)
	}
	defer rows.Close()

	var penalties []models.Penalty
	for rows.Next() {
		var p models.Penalty
		err := rows.Scan(
			&p.ID,
			&p.TenantID,
			&p.ReturnID,
			&p.Type,
			&p.AssessmentDate,
			&p.TaxDueDate,
			&p.ActualDate,
			&p.MonthsLate,
			&p.UnpaidTax,
			&p.PenaltyRate,
			&p.PenaltyAmount,
			&p.MaximumPenalty,
			&p.IsAbated,
			&p.AbatedAmount,
			&p.AbatementDate,
			&p.PaidInFull,
			&p.CreatedBy,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan penalty row: %w", err)
		}
		penalties = append(penalties, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating penalty rows: %w", err)
	}

	return penalties, nil
}

func (r *penaltyRepository) ExistsActive(ctx context.Context, tenantID, returnID string, kind models.PenaltyType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM penalties
			WHERE tenant_id = $1
			  AND return_id = $2
			  AND penalty_type = $3
			  AND is_abated = false
		)
	`

	var exists bool
	err := r.db.Pool.QueryRow(ctx, query, tenantID, returnID, string(kind)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check existing penalty for return %s: %w", returnID, err)
	}

	return exists, nil
}

func (r *penaltyRepository) UpdateAbatement(ctx context.Context, penalty *models.Penalty) error {
	query := `
		UPDATE penalties
		SET is_abated = $1,
			abated_amount = $2,
			abatement_date = $3,
			updated_at = NOW()
		WHERE id = $4
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		penalty.IsAbated,
		penalty.AbatedAmount,
		penalty.AbatementDate,
		penalty.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update penalty %s: %w", penalty.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("penalty %s not found", penalty.ID)
	}

	return nil
}
