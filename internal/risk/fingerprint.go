// Package risk computes listing fingerprints and explainable risk scores
// that gate publication.
package risk

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

// Price bucket boundaries.
const (
	bucket100K = 100_000
	bucket250K = 250_000
	bucket500K = 500_000
	bucket1M   = 1_000_000
	bucket2M   = 2_000_000
)

var (
	nonAlnumPattern   = regexp.MustCompile(`[^a-z0-9 ]+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// PhotoHasher hashes a listing photo for cross-listing reuse detection.
type PhotoHasher interface {
	Hash(ctx context.Context, photoURL string) (string, error)
}

// URLPhotoHasher hashes the photo URL string. It detects exact re-posting
// of the same hosted image but not re-encoded copies; swap in a perceptual
// hasher for pixel-level reuse detection.
type URLPhotoHasher struct{}

// Hash returns the hex SHA-256 of the photo URL.
func (URLPhotoHasher) Hash(_ context.Context, photoURL string) (string, error) {
	sum := sha256.Sum256([]byte(photoURL))
	return hex.EncodeToString(sum[:]), nil
}

// Fingerprinter derives normalized listing signatures.
type Fingerprinter struct {
	photos PhotoHasher
	log    logger.Interface
}

// NewFingerprinter creates a fingerprinter with the given photo hasher.
func NewFingerprinter(photos PhotoHasher, log logger.Interface) *Fingerprinter {
	return &Fingerprinter{photos: photos, log: log}
}

// Compute builds the fingerprint for a listing. Title and address are
// normalized before hashing; the fingerprint hash is derived from the
// normalized title, normalized address, price bucket and source domain.
func (f *Fingerprinter) Compute(ctx context.Context, listing *domain.Listing) (*domain.Fingerprint, error) {
	fp := &domain.Fingerprint{
		ListingID:   listing.ID,
		PriceBucket: PriceBucket(listing.Price),
		PhotoHashes: domain.StringSlice{},
	}

	titleNorm := NormalizeField(listing.Title)
	if titleNorm != "" {
		fp.TitleNorm = &titleNorm
	}

	var addressNorm string
	if listing.Address != nil {
		addressNorm = NormalizeField(*listing.Address)
		if addressNorm != "" {
			fp.AddressNorm = &addressNorm
		}
	}

	if listing.AreaLocality != nil {
		cell := GeoCell(*listing.AreaLocality)
		fp.GeoCell = &cell
	}

	fp.FingerprintHash = fingerprintHash(titleNorm, addressNorm, fp.PriceBucket, listing.SourceDomain)

	for _, photoURL := range listing.Images {
		hash, err := f.photos.Hash(ctx, photoURL)
		if err != nil {
			f.log.Warn("photo hash failed", "listing_id", listing.ID, "url", photoURL, "error", err.Error())
			continue
		}
		fp.PhotoHashes = append(fp.PhotoHashes, hash)
	}

	return fp, nil
}

// NormalizeField lowercases, strips non-alphanumeric characters and
// collapses whitespace.
func NormalizeField(s string) string {
	s = strings.ToLower(s)
	s = nonAlnumPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// PriceBucket maps a price to one of six fixed bands; non-positive or
// missing prices map to unknown.
func PriceBucket(price *float64) string {
	if price == nil || *price <= 0 {
		return domain.PriceBucketUnknown
	}

	switch p := *price; {
	case p < bucket100K:
		return domain.PriceBucketUnder100K
	case p < bucket250K:
		return domain.PriceBucket100To250K
	case p < bucket500K:
		return domain.PriceBucket250To500K
	case p < bucket1M:
		return domain.PriceBucket500KTo1M
	case p < bucket2M:
		return domain.PriceBucket1To2M
	default:
		return domain.PriceBucketOver2M
	}
}

// GeoCell derives a coarse location cell from a locality name. A stand-in
// for a true geohash until listings carry coordinates.
func GeoCell(locality string) string {
	return "loc:" + strings.ReplaceAll(NormalizeField(locality), " ", "-")
}

// fingerprintHash derives the fingerprint hash from normalized fields.
func fingerprintHash(titleNorm, addressNorm, priceBucket, source string) string {
	joined := strings.Join([]string{titleNorm, addressNorm, priceBucket, source}, "|")
	sum := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(sum[:])
}
