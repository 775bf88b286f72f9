package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// ErrListingNotFound is returned when a listing lookup by ID finds no row.
var ErrListingNotFound = errors.New("listing not found")

// listingSelectColumns lists columns for SELECT queries on listings.
const listingSelectColumns = `id, title, description, property_type, price, currency,
	bedrooms, bathrooms, area_locality, address, images, source_url, source_domain,
	source_type, content_hash, status, posted_by, discovered_at, last_checked_at,
	created_at, updated_at`

// ListingRepository handles database operations for normalized listings.
type ListingRepository struct {
	db *sqlx.DB
}

// NewListingRepository creates a new listing repository.
func NewListingRepository(db *sqlx.DB) *ListingRepository {
	return &ListingRepository{db: db}
}

// Insert persists a new listing and fills in its generated ID and timestamps.
func (r *ListingRepository) Insert(ctx context.Context, listing *domain.Listing) error {
	query := `
		INSERT INTO listings (
			title, description, property_type, price, currency,
			bedrooms, bathrooms, area_locality, address, images,
			source_url, source_domain, source_type, content_hash, status,
			posted_by, discovered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, NOW())
		RETURNING id, discovered_at, created_at, updated_at
	`

	row := r.db.QueryRowxContext(
		ctx, query,
		listing.Title, listing.Description, listing.PropertyType, listing.Price, listing.Currency,
		listing.Bedrooms, listing.Bathrooms, listing.AreaLocality, listing.Address, listing.Images,
		listing.SourceURL, listing.SourceDomain, listing.SourceType, listing.ContentHash, listing.Status,
		listing.PostedBy,
	)
	if err := row.Scan(&listing.ID, &listing.DiscoveredAt, &listing.CreatedAt, &listing.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert listing: %w", err)
	}
	return nil
}

// GetByID returns a listing by ID. Returns ErrListingNotFound if missing.
func (r *ListingRepository) GetByID(ctx context.Context, id string) (*domain.Listing, error) {
	query := `SELECT ` + listingSelectColumns + ` FROM listings WHERE id = $1`

	var listing domain.Listing
	err := r.db.GetContext(ctx, &listing, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrListingNotFound
		}
		return nil, fmt.Errorf("failed to get listing %s: %w", id, err)
	}
	return &listing, nil
}

// FindBySourceURL returns the listing with the given source URL, or nil when
// none exists.
func (r *ListingRepository) FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Listing, error) {
	query := `SELECT ` + listingSelectColumns + ` FROM listings WHERE source_url = $1`
	return r.findOne(ctx, query, sourceURL)
}

// FindByContentHash returns the listing with the given content hash, or nil
// when none exists.
func (r *ListingRepository) FindByContentHash(ctx context.Context, contentHash string) (*domain.Listing, error) {
	query := `SELECT ` + listingSelectColumns + ` FROM listings WHERE content_hash = $1`
	return r.findOne(ctx, query, contentHash)
}

// FindFuzzy returns a link-out listing matching locality, bedroom count and
// price band, or nil when none exists. Locality comparison is
// case-insensitive; the oldest match wins.
func (r *ListingRepository) FindFuzzy(
	ctx context.Context,
	area string,
	bedrooms int,
	minPrice, maxPrice float64,
) (*domain.Listing, error) {
	query := `
		SELECT ` + listingSelectColumns + `
		FROM listings
		WHERE source_type = 'linkout'
		  AND LOWER(area_locality) = LOWER($1)
		  AND bedrooms = $2
		  AND price BETWEEN $3 AND $4
		ORDER BY discovered_at ASC
		LIMIT 1
	`
	return r.findOne(ctx, query, area, bedrooms, minPrice, maxPrice)
}

func (r *ListingRepository) findOne(ctx context.Context, query string, args ...any) (*domain.Listing, error) {
	var listing domain.Listing
	err := r.db.GetContext(ctx, &listing, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find listing: %w", err)
	}
	return &listing, nil
}

// TouchLastChecked refreshes last_checked_at on a re-seen listing.
func (r *ListingRepository) TouchLastChecked(ctx context.Context, id string) error {
	query := `UPDATE listings SET last_checked_at = NOW(), updated_at = NOW() WHERE id = $1`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %s", ErrListingNotFound, id))
}

// UpdateStatus sets a listing's publication status.
func (r *ListingRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `UPDATE listings SET status = $1, updated_at = NOW() WHERE id = $2`

	result, execErr := r.db.ExecContext(ctx, query, status, id)
	return execRequireRows(result, execErr, fmt.Errorf("%w: %s", ErrListingNotFound, id))
}

// ListByStatus returns listings in the given status, oldest first.
func (r *ListingRepository) ListByStatus(ctx context.Context, status string, limit int) ([]*domain.Listing, error) {
	query := `
		SELECT ` + listingSelectColumns + `
		FROM listings
		WHERE status = $1
		ORDER BY updated_at ASC
		LIMIT $2
	`

	var listings []*domain.Listing
	if err := r.db.SelectContext(ctx, &listings, query, status, limit); err != nil {
		return nil, fmt.Errorf("failed to list listings by status: %w", err)
	}

	if listings == nil {
		listings = []*domain.Listing{}
	}
	return listings, nil
}

// LocalityPriceStats returns the average price and priced-listing count for
// a locality, for outlier detection. Case-insensitive on locality.
func (r *ListingRepository) LocalityPriceStats(ctx context.Context, area string) (float64, int, error) {
	query := `
		SELECT COALESCE(AVG(price), 0), COUNT(*)
		FROM listings
		WHERE LOWER(area_locality) = LOWER($1)
		  AND price IS NOT NULL AND price > 0
	`

	var (
		avg   float64
		count int
	)
	if err := r.db.QueryRowxContext(ctx, query, area).Scan(&avg, &count); err != nil {
		return 0, 0, fmt.Errorf("failed to query price stats for %s: %w", area, err)
	}
	return avg, count, nil
}
