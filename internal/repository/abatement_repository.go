package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civitax/engine/internal/database"
	"github.com/civitax/engine/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AbatementRepository defines the interface for penalty abatement requests.
type AbatementRepository interface {
	// Insert stores a newly submitted abatement request.
	Insert(ctx context.Context, abatement *models.PenaltyAbatement) error

	// FindByID fetches a single abatement request.
	// Returns nil, nil if the request does not exist (not an error).
	FindByID(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error)

	// Update persists the current state of an abatement request.
	Update(ctx context.Context, abatement *models.PenaltyAbatement) error

	// CountGrantedSince counts abatements approved (fully or partially) for a
	// filer on or after the given instant. Used for first-time eligibility.
	CountGrantedSince(ctx context.Context, filerID string, since time.Time) (int, error)
}

// abatementRepository is the concrete implementation of AbatementRepository.
type abatementRepository struct {
	db *database.Database
}

// NewAbatementRepository creates a new instance of AbatementRepository.
func NewAbatementRepository(db *database.Database) AbatementRepository {
	return &abatementRepository{db: db}
}

const abatementColumns = `
	id, penalty_id, filer_id, requested_amount, reason, explanation,
	status, approved_amount, reviewed_by, review_notes, reviewed_at,
	is_first_time, created_at, updated_at
`

func (r *abatementRepository) Insert(ctx context.Context, abatement *models.PenaltyAbatement) error {
	query := `
		INSERT INTO penalty_abatements (` + abatementColumns + `
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14
		)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		abatement.ID,
		abatement.PenaltyID,
		abatement.FilerID,
		abatement.RequestedAmount,
		string(abatement.Reason),
		abatement.Explanation,
		string(abatement.Status),
		abatement.ApprovedAmount,
		abatement.ReviewedBy,
		abatement.ReviewNotes,
		abatement.ReviewedAt,
		abatement.IsFirstTimeAbatement,
		abatement.CreatedAt,
		abatement.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert abatement for penalty %s: %w", abatement.PenaltyID, err)
	}

	return nil
}

func (r *abatementRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.PenaltyAbatement, error) {
	query := `
		SELECT ` + abatementColumns + `
		FROM penalty_abatements
		WHERE id = $1
	`

	var a models.PenaltyAbatement
	err := r.db.Pool.QueryRow(ctx, query, id).Scan(
		&a.ID,
		&a.PenaltyID,
		&a.FilerID,
		&a.RequestedAmount,
		&a.Reason,
		&a.Explanation,
		&a.Status,
		&a.ApprovedAmount,
		&a.ReviewedBy,
		&a.ReviewNotes,
		&a.ReviewedAt,
		&a.IsFirstTimeAbatement,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query abatement %s: %w", id, err)
	}

	return &a, nil
}

func (r *abatementRepository) Update(ctx context.Context, abatement *models.PenaltyAbatement) error {
	query := `
		UPDATE penalty_abatements
		SET status = $1,
			approved_amount = $2,
			reviewed_by = $3,
			review_notes = $4,
			reviewed_at = $5,
			is_first_time = $6,
			updated_at = NOW()
		WHERE id = $7
	`

	tag, err := r.db.Pool.Exec(ctx, query,
		string(abatement.Status),
		abatement.ApprovedAmount,
		abatement.ReviewedBy,
		abatement.ReviewNotes,
		abatement.ReviewedAt,
		abatement.IsFirstTimeAbatement,
		abatement.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update abatement %s: %w", abatement.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("abatement %s not found", abatement.ID)
	}

	return nil
}

func (r *abatementRepository) CountGrantedSince(ctx context.Context, filerID string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM penalty_abatements
		WHERE filer_id = $1
		  AND status IN ('APPROVED', 'PARTIAL')
		  AND reviewed_at >= $2
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, filerID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count granted abatements for filer %s: %w", filerID, err)
	}

	return count, nil
}
