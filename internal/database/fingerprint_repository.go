package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/risk"
)

// ErrFingerprintNotFound is returned when a listing has no fingerprint row.
var ErrFingerprintNotFound = errors.New("fingerprint not found")

// fingerprintSelectColumns lists columns for SELECT queries on listing_fingerprints.
const fingerprintSelectColumns = `id, listing_id, fingerprint_hash, title_norm,
	address_norm, price_bucket, geo_cell, photo_hashes, created_at, updated_at`

// FingerprintRepository handles database operations for listing fingerprints.
type FingerprintRepository struct {
	db *sqlx.DB
}

// NewFingerprintRepository creates a new fingerprint repository.
func NewFingerprintRepository(db *sqlx.DB) *FingerprintRepository {
	return &FingerprintRepository{db: db}
}

// Upsert replaces the fingerprint for a listing. Recomputation wins: one
// active row per listing, last write replaces all derived fields.
func (r *FingerprintRepository) Upsert(ctx context.Context, fp *domain.Fingerprint) error {
	query := `
		INSERT INTO listing_fingerprints (
			listing_id, fingerprint_hash, title_norm, address_norm,
			price_bucket, geo_cell, photo_hashes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (listing_id) DO UPDATE SET
			fingerprint_hash = EXCLUDED.fingerprint_hash,
			title_norm = EXCLUDED.title_norm,
			address_norm = EXCLUDED.address_norm,
			price_bucket = EXCLUDED.price_bucket,
			geo_cell = EXCLUDED.geo_cell,
			photo_hashes = EXCLUDED.photo_hashes,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`

	row := r.db.QueryRowxContext(
		ctx, query,
		fp.ListingID, fp.FingerprintHash, fp.TitleNorm, fp.AddressNorm,
		fp.PriceBucket, fp.GeoCell, fp.PhotoHashes,
	)
	if err := row.Scan(&fp.ID, &fp.CreatedAt, &fp.UpdatedAt); err != nil {
		return fmt.Errorf("failed to upsert fingerprint for listing %s: %w", fp.ListingID, err)
	}
	return nil
}

// GetByListing returns the fingerprint for a listing.
// Returns ErrFingerprintNotFound if missing.
func (r *FingerprintRepository) GetByListing(ctx context.Context, listingID string) (*domain.Fingerprint, error) {
	query := `SELECT ` + fingerprintSelectColumns + ` FROM listing_fingerprints WHERE listing_id = $1`

	var fp domain.Fingerprint
	err := r.db.GetContext(ctx, &fp, query, listingID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFingerprintNotFound
		}
		return nil, fmt.Errorf("failed to get fingerprint for listing %s: %w", listingID, err)
	}
	return &fp, nil
}

// CountByHashExcept counts listings other than the given one sharing a
// fingerprint hash.
func (r *FingerprintRepository) CountByHashExcept(ctx context.Context, hash, exceptListingID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM listing_fingerprints
		WHERE fingerprint_hash = $1
		  AND listing_id <> $2
	`

	var count int
	if err := r.db.GetContext(ctx, &count, query, hash, exceptListingID); err != nil {
		return 0, fmt.Errorf("failed to count fingerprints by hash: %w", err)
	}
	return count, nil
}

// FindPhotoReuse returns other listings whose fingerprints share any of the
// given photo hashes, with the poster of each.
func (r *FingerprintRepository) FindPhotoReuse(
	ctx context.Context,
	photoHashes []string,
	exceptListingID string,
) ([]risk.PhotoReuse, error) {
	if len(photoHashes) == 0 {
		return nil, nil
	}

	query := `
		SELECT f.listing_id, l.posted_by
		FROM listing_fingerprints f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.listing_id <> $1
		  AND f.photo_hashes ?| $2
	`

	var matches []risk.PhotoReuse
	if err := r.db.SelectContext(ctx, &matches, query, exceptListingID, pq.Array(photoHashes)); err != nil {
		return nil, fmt.Errorf("failed to find photo reuse: %w", err)
	}
	return matches, nil
}
