package domain

import "time"

// Risk level constants.
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// Risk status constants. Automated scoring sets these; an admin override
// supersedes them until the next rescore.
const (
	RiskStatusOK             = "ok"
	RiskStatusHold           = "hold"
	RiskStatusReviewRequired = "review_required"
)

// Risk level thresholds on the additive score.
const (
	HighRiskThreshold   = 70
	MediumRiskThreshold = 40
)

// Price bucket labels used in fingerprints.
const (
	PriceBucketUnder100K = "under_100k"
	PriceBucket100To250K = "100k_250k"
	PriceBucket250To500K = "250k_500k"
	PriceBucket500KTo1M  = "500k_1m"
	PriceBucket1To2M     = "1m_2m"
	PriceBucketOver2M    = "over_2m"
	PriceBucketUnknown   = "unknown"
)

// LevelForScore maps a risk score to its level via the fixed thresholds.
func LevelForScore(score int) string {
	switch {
	case score >= HighRiskThreshold:
		return RiskLevelHigh
	case score >= MediumRiskThreshold:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// StatusForLevel maps a risk level to the automated decision status.
func StatusForLevel(level string) string {
	switch level {
	case RiskLevelHigh:
		return RiskStatusHold
	case RiskLevelMedium:
		return RiskStatusReviewRequired
	default:
		return RiskStatusOK
	}
}

// Fingerprint is the derived, normalized signature of a listing used for
// duplicate and fraud detection independent of exact text match. One active
// fingerprint per listing; recomputed on demand, last write wins.
type Fingerprint struct {
	ID              string      `db:"id"               json:"id"`
	ListingID       string      `db:"listing_id"       json:"listing_id"`
	FingerprintHash string      `db:"fingerprint_hash" json:"fingerprint_hash"`
	TitleNorm       *string     `db:"title_norm"       json:"title_norm,omitempty"`
	AddressNorm     *string     `db:"address_norm"     json:"address_norm,omitempty"`
	PriceBucket     string      `db:"price_bucket"     json:"price_bucket"`
	GeoCell         *string     `db:"geo_cell"         json:"geo_cell,omitempty"`
	PhotoHashes     StringSlice `db:"photo_hashes"     json:"photo_hashes"`
	CreatedAt       time.Time   `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"       json:"updated_at"`
}

// RiskScore is the explainable scoring result for a listing. One active row
// per listing, upserted by the scorer and mutable by admin override.
type RiskScore struct {
	ID          string      `db:"id"           json:"id"`
	ListingID   string      `db:"listing_id"   json:"listing_id"`
	RiskScore   int         `db:"risk_score"   json:"risk_score"`
	RiskLevel   string      `db:"risk_level"   json:"risk_level"`
	Reasons     StringSlice `db:"reasons"      json:"reasons"`
	Status      string      `db:"status"       json:"status"`
	ReviewedBy  *string     `db:"reviewed_by"  json:"reviewed_by,omitempty"`
	ReviewNotes *string     `db:"review_notes" json:"review_notes,omitempty"`
	CreatedAt   time.Time   `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at"   json:"updated_at"`
}
