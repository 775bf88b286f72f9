// Package normalize maps extracted listings into the internal schema under
// a publisher-defined republication policy.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// maxTitleLength bounds stored titles; longer titles are truncated with an
// ellipsis marker.
const maxTitleLength = 200

// redactedTitlePlaceholder replaces the title when the policy disallows it.
const redactedTitlePlaceholder = "Property listing"

// typeKeyword maps a title keyword to a property type. First match wins.
type typeKeyword struct {
	keyword      string
	propertyType string
}

// typeKeywords is the fixed keyword list for property type inference.
var typeKeywords = []typeKeyword{
	{"apartment", "apartment"},
	{"flat", "apartment"},
	{"penthouse", "penthouse"},
	{"villa", "villa"},
	{"house", "house"},
	{"maisonette", "house"},
}

// minimalPolicy covers sources without a stored policy: a link-out
// rendition keeping only the always-storable field subset.
var minimalPolicy = &domain.DomainPolicy{
	FieldsAllowed: domain.StringSlice(domain.MinimalPolicyFields),
}

// Normalize applies the domain policy's field allow-list to an extracted
// listing and produces the normalized row. Redacted fields are nulled (or
// replaced with a placeholder for the title), never omitted; the output
// shape is always complete. A nil policy falls back to the minimal field
// subset.
func Normalize(extracted *domain.ExtractedListing, sourceDomain string, policy *domain.DomainPolicy) *domain.Listing {
	if policy == nil {
		policy = minimalPolicy
	}

	listing := &domain.Listing{
		Title:        truncateTitle(extracted.Title),
		PropertyType: inferType(extracted.Title),
		Currency:     extracted.Currency,
		SourceURL:    extracted.CanonicalURL,
		SourceDomain: sourceDomain,
		SourceType:   domain.SourceTypeLinkout,
		Status:       domain.ListingStatusPending,
		Images:       domain.StringSlice{},
		DiscoveredAt: time.Now(),
	}

	if !policy.AllowsField(domain.FieldTitle) {
		listing.Title = redactedTitlePlaceholder
	}

	if policy.AllowsField(domain.FieldDescription) {
		listing.Description = extracted.Description
	}
	if policy.AllowsField(domain.FieldImages) && len(extracted.Images) > 0 {
		listing.Images = domain.StringSlice(extracted.Images)
	}
	if policy.AllowsField(domain.FieldPrice) {
		listing.Price = extracted.Price
	}
	if policy.AllowsField(domain.FieldBedrooms) {
		listing.Bedrooms = extracted.Bedrooms
	}
	if policy.AllowsField(domain.FieldBathrooms) {
		listing.Bathrooms = extracted.Bathrooms
	}
	if policy.AllowsField(domain.FieldAddress) {
		listing.Address = extracted.Address
	}
	if policy.AllowsField(domain.FieldArea) {
		listing.AreaLocality = extracted.AreaLocality
	}

	listing.ContentHash = ContentHash(
		extracted.CanonicalURL,
		extracted.Price,
		extracted.Bedrooms,
		extracted.AreaLocality,
	)

	return listing
}

// ContentHash computes the deterministic dedupe hash from the canonical
// URL, price, bedroom count and area. Identical inputs always yield
// identical hashes.
func ContentHash(canonicalURL string, price *float64, bedrooms *int, area *string) string {
	parts := []string{
		canonicalURL,
		floatPart(price),
		intPart(bedrooms),
		stringPart(area),
	}

	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))

	return hex.EncodeToString(sum[:])
}

// truncateTitle bounds the title length, appending an ellipsis marker when
// truncated. The cut never splits a multibyte rune.
func truncateTitle(title string) string {
	title = strings.TrimSpace(title)
	if len(title) <= maxTitleLength {
		return title
	}

	cut := maxTitleLength - 3
	for cut > 0 && !utf8.RuneStart(title[cut]) {
		cut--
	}

	return title[:cut] + "..."
}

// inferType derives the property type from title keywords, first match
// wins, defaulting to "other".
func inferType(title string) string {
	lower := strings.ToLower(title)
	for _, tk := range typeKeywords {
		if strings.Contains(lower, tk.keyword) {
			return tk.propertyType
		}
	}

	return "other"
}

func floatPart(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}

func intPart(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%d", *v)
}

func stringPart(v *string) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*v))
}
