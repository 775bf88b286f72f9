// Package extract turns fetched listing pages into intermediate listings.
// Two strategies exist: structured-data blocks (JSON-LD) and heuristic
// fallback over page metadata. Both return nil, not an error, when the page
// carries too little signal.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// listingTypes is the fixed set of schema.org types accepted as listing
// candidates.
var listingTypes = map[string]struct{}{
	"RealEstateListing":     {},
	"Product":               {},
	"Residence":             {},
	"Apartment":             {},
	"House":                 {},
	"SingleFamilyResidence": {},
	"ApartmentComplex":      {},
}

// ExtractStructured scans all JSON-LD blocks on the page and parses the
// first block whose declared type matches a known listing type. Graph-wrapped
// collections (@graph) are unwrapped. Returns nil when no matching block
// parses; callers treat that as "fall back to heuristic extraction".
func ExtractStructured(doc *goquery.Document, sourceURL string) *domain.ExtractedListing {
	var listing *domain.ExtractedListing

	doc.Find("script[type='application/ld+json']").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		jsonText := strings.TrimSpace(s.Text())
		if jsonText == "" {
			return true
		}

		var parsed any
		if err := json.Unmarshal([]byte(jsonText), &parsed); err != nil {
			// Invalid JSON in one block must not abort the scan.
			return true
		}

		for _, candidate := range flattenCandidates(parsed) {
			if !isListingType(candidate) {
				continue
			}
			if l := parseListingObject(candidate, sourceURL); l != nil {
				listing = l
				return false
			}
		}

		return true
	})

	return listing
}

// flattenCandidates unwraps arrays and @graph collections into a flat list
// of candidate objects.
func flattenCandidates(parsed any) []map[string]any {
	var out []map[string]any

	switch v := parsed.(type) {
	case []any:
		for _, item := range v {
			if obj, ok := item.(map[string]any); ok {
				out = append(out, flattenGraph(obj)...)
			}
		}
	case map[string]any:
		out = append(out, flattenGraph(v)...)
	}

	return out
}

// flattenGraph expands an object's @graph member when present, otherwise
// returns the object itself.
func flattenGraph(obj map[string]any) []map[string]any {
	graph, ok := obj["@graph"].([]any)
	if !ok {
		return []map[string]any{obj}
	}

	out := make([]map[string]any, 0, len(graph))
	for _, item := range graph {
		if node, nodeOK := item.(map[string]any); nodeOK {
			out = append(out, node)
		}
	}

	return out
}

// isListingType checks the candidate's @type against the accepted set.
// @type may be a string or a list of strings.
func isListingType(obj map[string]any) bool {
	switch t := obj["@type"].(type) {
	case string:
		_, ok := listingTypes[t]
		return ok
	case []any:
		for _, item := range t {
			if s, isStr := item.(string); isStr {
				if _, ok := listingTypes[s]; ok {
					return true
				}
			}
		}
	}

	return false
}

// parseListingObject maps a matched JSON-LD object into the intermediate
// listing shape. Returns nil when the object has no usable name.
func parseListingObject(obj map[string]any, sourceURL string) *domain.ExtractedListing {
	title := stringField(obj, "name")
	if title == "" {
		return nil
	}

	listing := &domain.ExtractedListing{
		Title:            title,
		Currency:         "EUR",
		CanonicalURL:     sourceURL,
		ExtractionMethod: domain.ExtractionStructured,
	}

	if desc := stringField(obj, "description"); desc != "" {
		listing.Description = &desc
	}

	if u := stringField(obj, "url"); u != "" {
		listing.CanonicalURL = u
	}

	parseOffer(obj, listing)
	parseAddress(obj, listing)

	listing.Bedrooms = intField(obj, "numberOfBedrooms")
	if listing.Bedrooms == nil {
		listing.Bedrooms = intField(obj, "numberOfRooms")
	}
	listing.Bathrooms = intField(obj, "numberOfBathroomsTotal")

	listing.Images = parseImages(obj["image"])

	return listing
}

// parseOffer extracts price and currency from the object's offers member
// or a top-level price. Price may be a bare number, a numeric string, or a
// nested price object carrying the currency.
func parseOffer(obj map[string]any, listing *domain.ExtractedListing) {
	offer := obj

	switch o := obj["offers"].(type) {
	case map[string]any:
		offer = o
	case []any:
		if len(o) > 0 {
			if first, ok := o[0].(map[string]any); ok {
				offer = first
			}
		}
	}

	if currency := stringField(offer, "priceCurrency"); currency != "" {
		listing.Currency = currency
	}

	switch p := offer["price"].(type) {
	case float64:
		listing.Price = &p
	case string:
		if parsed, err := strconv.ParseFloat(strings.ReplaceAll(p, ",", ""), 64); err == nil {
			listing.Price = &parsed
		}
	case map[string]any:
		if v := floatField(p, "value"); v != nil {
			listing.Price = v
		}
		if currency := stringField(p, "currency"); currency != "" {
			listing.Currency = currency
		}
	}
}

// parseAddress extracts the street address and locality from a
// PostalAddress object or a bare address string.
func parseAddress(obj map[string]any, listing *domain.ExtractedListing) {
	switch addr := obj["address"].(type) {
	case string:
		if addr != "" {
			a := addr
			listing.Address = &a
		}
	case map[string]any:
		street := stringField(addr, "streetAddress")
		locality := stringField(addr, "addressLocality")

		if locality != "" {
			listing.AreaLocality = &locality
		}

		full := strings.TrimSpace(strings.Trim(street+", "+locality, ", "))
		if full != "" {
			listing.Address = &full
		}
	}
}

// parseImages accepts a string, a list of strings, or ImageObject nodes.
func parseImages(value any) []string {
	var images []string

	appendURL := func(item any) {
		switch v := item.(type) {
		case string:
			if v != "" {
				images = append(images, v)
			}
		case map[string]any:
			if u := stringField(v, "url"); u != "" {
				images = append(images, u)
			}
		}
	}

	switch v := value.(type) {
	case []any:
		for _, item := range v {
			appendURL(item)
		}
	default:
		appendURL(v)
	}

	return images
}

// stringField returns the trimmed string value of a field, or "".
func stringField(obj map[string]any, key string) string {
	if s, ok := obj[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// floatField parses a field that may be a number or numeric string.
// Returns nil on failure rather than raising.
func floatField(obj map[string]any, key string) *float64 {
	switch v := obj[key].(type) {
	case float64:
		return &v
	case string:
		if parsed, err := strconv.ParseFloat(strings.ReplaceAll(v, ",", ""), 64); err == nil {
			return &parsed
		}
	}
	return nil
}

// intField parses a field that may be a number or numeric string.
// Returns nil on failure rather than raising.
func intField(obj map[string]any, key string) *int {
	switch v := obj[key].(type) {
	case float64:
		n := int(v)
		return &n
	case string:
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return &parsed
		}
	}
	return nil
}
