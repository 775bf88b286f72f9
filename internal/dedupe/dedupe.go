// Package dedupe checks incoming listings against existing inventory by
// exact keys and fuzzy locality/price/bedroom proximity.
package dedupe

import (
	"context"
	"fmt"
	"math"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

// Duplicate reason constants, in check priority order.
const (
	ReasonSourceURL   = "source_url"
	ReasonContentHash = "content_hash"
	ReasonFuzzyMatch  = "fuzzy_match"
)

// Price band parameters for fuzzy matching. The candidate price is floored
// to the nearest band step and the window extends below and above it.
const (
	priceBandStep  = 10000.0
	priceBandBelow = 5000.0
	priceBandAbove = 15000.0
)

// Inventory is the read surface the checker needs over existing listings.
// Find methods return nil without error when nothing matches.
type Inventory interface {
	FindBySourceURL(ctx context.Context, sourceURL string) (*domain.Listing, error)
	FindByContentHash(ctx context.Context, contentHash string) (*domain.Listing, error)
	FindFuzzy(ctx context.Context, area string, bedrooms int, minPrice, maxPrice float64) (*domain.Listing, error)
	TouchLastChecked(ctx context.Context, id string) error
}

// Candidate carries the dedupe dimensions of an incoming listing.
type Candidate struct {
	SourceURL   string
	ContentHash string
	Area        *string
	Price       *float64
	Bedrooms    *int
}

// Result reports a dedupe decision.
type Result struct {
	IsDuplicate bool
	ExistingID  string
	Reason      string
}

// Checker runs duplicate checks against inventory.
type Checker struct {
	inventory Inventory
	log       logger.Interface
}

// NewChecker creates a dedupe checker.
func NewChecker(inventory Inventory, log logger.Interface) *Checker {
	return &Checker{inventory: inventory, log: log}
}

// PriceBand computes the fuzzy-match price window for a candidate price.
func PriceBand(price float64) (minPrice, maxPrice float64) {
	base := math.Floor(price/priceBandStep) * priceBandStep
	return base - priceBandBelow, base + priceBandAbove
}

// Check runs the duplicate checks in strict priority order, short-circuiting
// on the first hit: exact source URL, exact content hash, then fuzzy
// locality/bedrooms/price-band. On a hit the existing record's
// last_checked_at is refreshed; nothing is written for the candidate.
func (c *Checker) Check(ctx context.Context, candidate Candidate) (*Result, error) {
	if existing, err := c.inventory.FindBySourceURL(ctx, candidate.SourceURL); err != nil {
		return nil, fmt.Errorf("dedupe source url check: %w", err)
	} else if existing != nil {
		return c.hit(ctx, existing, ReasonSourceURL)
	}

	if existing, err := c.inventory.FindByContentHash(ctx, candidate.ContentHash); err != nil {
		return nil, fmt.Errorf("dedupe content hash check: %w", err)
	} else if existing != nil {
		return c.hit(ctx, existing, ReasonContentHash)
	}

	// Fuzzy matching needs all three dimensions; skip entirely otherwise.
	if candidate.Area == nil || candidate.Price == nil || candidate.Bedrooms == nil {
		return &Result{}, nil
	}

	minPrice, maxPrice := PriceBand(*candidate.Price)

	existing, err := c.inventory.FindFuzzy(ctx, *candidate.Area, *candidate.Bedrooms, minPrice, maxPrice)
	if err != nil {
		return nil, fmt.Errorf("dedupe fuzzy check: %w", err)
	}
	if existing != nil {
		return c.hit(ctx, existing, ReasonFuzzyMatch)
	}

	return &Result{}, nil
}

// hit refreshes the existing record and builds the duplicate result.
func (c *Checker) hit(ctx context.Context, existing *domain.Listing, reason string) (*Result, error) {
	if err := c.inventory.TouchLastChecked(ctx, existing.ID); err != nil {
		c.log.Error("refresh last_checked_at failed",
			"listing_id", existing.ID,
			"error", err.Error(),
		)
	}

	c.log.Info("duplicate listing detected",
		"existing_id", existing.ID,
		"reason", reason,
	)

	return &Result{IsDuplicate: true, ExistingID: existing.ID, Reason: reason}, nil
}
