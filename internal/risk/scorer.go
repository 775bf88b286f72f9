package risk

import (
	"context"
	"fmt"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

// Signal weights. Scores are additive; one reason string per fired signal.
const (
	WeightDuplicateFingerprint = 40
	WeightPhotoReuse           = 35
	WeightMissingLocation      = 10
	WeightNoPhotos             = 15
	WeightPriceOutlier         = 20
)

// Price outlier detection parameters. A listing's price is an outlier when
// it deviates from the locality average by more than outlierRatio in either
// direction, with at least minOutlierSample priced listings in the locality.
const (
	outlierRatio     = 3.0
	minOutlierSample = 5
)

// ListingReader loads persisted listings for scoring.
type ListingReader interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
}

// PhotoReuse is a photo hash shared with another listing.
type PhotoReuse struct {
	ListingID string  `db:"listing_id"`
	PostedBy  *string `db:"posted_by"`
}

// FingerprintStore persists and queries listing fingerprints.
type FingerprintStore interface {
	Upsert(ctx context.Context, fp *domain.Fingerprint) error
	GetByListing(ctx context.Context, listingID string) (*domain.Fingerprint, error)
	CountByHashExcept(ctx context.Context, hash, exceptListingID string) (int, error)
	FindPhotoReuse(ctx context.Context, photoHashes []string, exceptListingID string) ([]PhotoReuse, error)
}

// ScoreStore persists risk scores.
type ScoreStore interface {
	Upsert(ctx context.Context, score *domain.RiskScore) error
}

// PriceStats reports aggregate prices for outlier detection.
type PriceStats interface {
	LocalityPriceStats(ctx context.Context, area string) (avg float64, count int, err error)
}

// Scorer evaluates listings against the fraud signals and records the
// resulting score and decision status.
type Scorer struct {
	listings     ListingReader
	fingerprints FingerprintStore
	scores       ScoreStore
	stats        PriceStats
	enabled      bool
	log          logger.Interface
}

// NewScorer creates a scorer. The enabled flag is the scoring kill switch:
// when false, Score is a no-op and listings proceed without a hold.
func NewScorer(
	listings ListingReader,
	fingerprints FingerprintStore,
	scores ScoreStore,
	stats PriceStats,
	enabled bool,
	log logger.Interface,
) *Scorer {
	return &Scorer{
		listings:     listings,
		fingerprints: fingerprints,
		scores:       scores,
		stats:        stats,
		enabled:      enabled,
		log:          log,
	}
}

// Score evaluates all signals for a listing, upserts the score row and
// returns it. Rescoring is idempotent: the same inputs produce the same
// score, and the upsert replaces any prior automated decision. Returns
// (nil, nil) when scoring is disabled.
func (s *Scorer) Score(ctx context.Context, listingID string) (*domain.RiskScore, error) {
	if !s.enabled {
		s.log.Info("risk scoring disabled, skipping", "listing_id", listingID)
		return nil, nil
	}

	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load listing %s: %w", listingID, err)
	}

	fp, err := s.fingerprints.GetByListing(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("load fingerprint for listing %s: %w", listingID, err)
	}

	var (
		total   int
		reasons domain.StringSlice
	)
	add := func(weight int, reason string) {
		total += weight
		reasons = append(reasons, reason)
	}

	dupes, err := s.fingerprints.CountByHashExcept(ctx, fp.FingerprintHash, listingID)
	if err != nil {
		return nil, fmt.Errorf("count duplicate fingerprints: %w", err)
	}
	if dupes > 0 {
		add(WeightDuplicateFingerprint, fmt.Sprintf("fingerprint matches %d other listing(s)", dupes))
	}

	if len(fp.PhotoHashes) > 0 {
		matches, err := s.fingerprints.FindPhotoReuse(ctx, fp.PhotoHashes, listingID)
		if err != nil {
			return nil, fmt.Errorf("find photo reuse: %w", err)
		}
		if other, ok := crossPosterMatch(listing, matches); ok {
			add(WeightPhotoReuse, fmt.Sprintf("photo reused from listing %s by a different poster", other))
		}
	}

	if listing.Address == nil && listing.AreaLocality == nil {
		add(WeightMissingLocation, "missing address and locality")
	}

	if len(listing.Images) == 0 {
		add(WeightNoPhotos, "no photos")
	}

	if reason, ok := s.priceOutlier(ctx, listing); ok {
		add(WeightPriceOutlier, reason)
	}

	if reasons == nil {
		reasons = domain.StringSlice{}
	}

	level := domain.LevelForScore(total)
	score := &domain.RiskScore{
		ListingID: listingID,
		RiskScore: total,
		RiskLevel: level,
		Reasons:   reasons,
		Status:    domain.StatusForLevel(level),
	}

	if err := s.scores.Upsert(ctx, score); err != nil {
		return nil, fmt.Errorf("save risk score for listing %s: %w", listingID, err)
	}

	s.log.Info("listing scored",
		"listing_id", listingID,
		"score", total,
		"level", level,
		"status", score.Status,
		"reasons", []string(reasons))

	return score, nil
}

// crossPosterMatch reports whether any photo reuse match comes from a
// different poster than the listing's.
func crossPosterMatch(listing *domain.Listing, matches []PhotoReuse) (string, bool) {
	for _, m := range matches {
		if m.ListingID == listing.ID {
			continue
		}
		if posterKey(m.PostedBy) != posterKey(listing.PostedBy) {
			return m.ListingID, true
		}
	}
	return "", false
}

func posterKey(postedBy *string) string {
	if postedBy == nil {
		return ""
	}
	return *postedBy
}

// priceOutlier checks the listing price against locality aggregates. The
// signal stays silent when the price or locality is missing, stats are
// unavailable, or the sample is too small.
func (s *Scorer) priceOutlier(ctx context.Context, listing *domain.Listing) (string, bool) {
	if listing.Price == nil || *listing.Price <= 0 || listing.AreaLocality == nil {
		return "", false
	}

	avg, count, err := s.stats.LocalityPriceStats(ctx, *listing.AreaLocality)
	if err != nil {
		s.log.Warn("price stats unavailable", "area", *listing.AreaLocality, "error", err.Error())
		return "", false
	}
	if count < minOutlierSample || avg <= 0 {
		return "", false
	}

	price := *listing.Price
	if price > avg*outlierRatio || price < avg/outlierRatio {
		return fmt.Sprintf("price %.0f is an extreme outlier for %s (average %.0f)", price, *listing.AreaLocality, avg), true
	}
	return "", false
}
