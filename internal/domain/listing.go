package domain

import "time"

// Extraction method constants recorded on extracted listings.
const (
	ExtractionStructured = "structured"
	ExtractionMeta       = "meta"
	ExtractionHeuristic  = "heuristic"
)

// Listing publication status constants.
const (
	ListingStatusPending       = "pending"
	ListingStatusApproved      = "approved"
	ListingStatusRejected      = "rejected"
	ListingStatusHoldForReview = "hold_for_review"
)

// SourceTypeLinkout marks listings ingested from third-party pages.
const SourceTypeLinkout = "linkout"

// ExtractedListing is the intermediate listing shape produced by the
// extractors. It is never persisted; the normalizer maps it into a Listing.
type ExtractedListing struct {
	Title            string   `json:"title"`
	Description      *string  `json:"description,omitempty"`
	Price            *float64 `json:"price,omitempty"`
	Currency         string   `json:"currency"`
	Bedrooms         *int     `json:"bedrooms,omitempty"`
	Bathrooms        *int     `json:"bathrooms,omitempty"`
	AreaLocality     *string  `json:"area_locality,omitempty"`
	Address          *string  `json:"address,omitempty"`
	Images           []string `json:"images"`
	CanonicalURL     string   `json:"canonical_url"`
	ExtractionMethod string   `json:"extraction_method"`
}

// Listing is the normalized row persisted into inventory when the item is
// not a duplicate. Redacted fields are nil, never omitted.
type Listing struct {
	ID            string      `db:"id"              json:"id"`
	Title         string      `db:"title"           json:"title"`
	Description   *string     `db:"description"     json:"description,omitempty"`
	PropertyType  string      `db:"property_type"   json:"property_type"`
	Price         *float64    `db:"price"           json:"price,omitempty"`
	Currency      string      `db:"currency"        json:"currency"`
	Bedrooms      *int        `db:"bedrooms"        json:"bedrooms,omitempty"`
	Bathrooms     *int        `db:"bathrooms"       json:"bathrooms,omitempty"`
	AreaLocality  *string     `db:"area_locality"   json:"area_locality,omitempty"`
	Address       *string     `db:"address"         json:"address,omitempty"`
	Images        StringSlice `db:"images"          json:"images"`
	SourceURL     string      `db:"source_url"      json:"source_url"`
	SourceDomain  string      `db:"source_domain"   json:"source_domain"`
	SourceType    string      `db:"source_type"     json:"source_type"`
	ContentHash   string      `db:"content_hash"    json:"content_hash"`
	Status        string      `db:"status"          json:"status"`
	PostedBy      *string     `db:"posted_by"       json:"posted_by,omitempty"`
	DiscoveredAt  time.Time   `db:"discovered_at"   json:"discovered_at"`
	LastCheckedAt *time.Time  `db:"last_checked_at" json:"last_checked_at,omitempty"`
	CreatedAt     time.Time   `db:"created_at"      json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"      json:"updated_at"`
}
