package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// ErrScoreNotFound is returned when a listing has no risk score row.
var ErrScoreNotFound = errors.New("risk score not found")

// riskSelectColumns lists columns for SELECT queries on risk_scores.
const riskSelectColumns = `id, listing_id, risk_score, risk_level, reasons,
	status, reviewed_by, review_notes, created_at, updated_at`

// RiskRepository handles database operations for risk scores.
type RiskRepository struct {
	db *sqlx.DB
}

// NewRiskRepository creates a new risk repository.
func NewRiskRepository(db *sqlx.DB) *RiskRepository {
	return &RiskRepository{db: db}
}

// Upsert replaces the automated score for a listing. A rescore supersedes
// any prior override status; reviewer attribution is kept as history.
func (r *RiskRepository) Upsert(ctx context.Context, score *domain.RiskScore) error {
	query := `
		INSERT INTO risk_scores (listing_id, risk_score, risk_level, reasons, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (listing_id) DO UPDATE SET
			risk_score = EXCLUDED.risk_score,
			risk_level = EXCLUDED.risk_level,
			reasons = EXCLUDED.reasons,
			status = EXCLUDED.status,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(
		ctx, query,
		score.ListingID, score.RiskScore, score.RiskLevel, score.Reasons, score.Status,
	)
	if err := row.Scan(&score.ID, &score.CreatedAt, &score.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert risk score for listing %s: %w", score.ListingID, err)
	}
	return nil
}

// GetByListing returns the risk score for a listing.
// Returns ErrScoreNotFound if missing.
func (r *RiskRepository) GetByListing(ctx context.Context, listingID string) (*domain.RiskScore, error) {
	query := `SELECT ` + riskSelectColumns + ` FROM risk_scores WHERE listing_id = $1`

	var score domain.RiskScore
	err := r.db.GetContext(ctx, &score, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrScoreNotFound
		}
		return nil, fmt.Errorf("failed to get risk score for listing %s: %w", listingID, err)
	}
	return &score, nil
}

// ApplyOverride sets the decision status and reviewer attribution on an
// existing score row. Fails if the listing was never scored.
func (r *RiskRepository) ApplyOverride(ctx context.Context, listingID, status, reviewedBy string, notes *string) error {
	query := `
		UPDATE risk_scores
		SET status = $1,
			reviewed_by = $2,
			review_notes = $3,
			updated_at = NOW()
		WHERE listing_id = $4
	`

	result, execErr := r.db.ExecContext(ctx, query, status, reviewedBy, notes, listingID)
	return execRequireRows(result, execErr, fmt.Errorf("%w: listing %s", ErrScoreNotFound, listingID))
}
