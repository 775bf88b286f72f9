package extract

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// ExtractFallback builds a listing from page metadata and regex heuristics
// when no structured data is present. Returns nil when neither a price nor
// a bedroom count can be recovered; the caller treats that as "not enough
// signal to build a listing".
func ExtractFallback(doc *goquery.Document, sourceURL string) *domain.ExtractedListing {
	title, titleFromMeta := extractTitle(doc)
	description := extractDescription(doc)

	// Free text searched by the heuristics, highest-signal first.
	text := title
	if description != nil {
		text += " " + *description
	}
	text += " " + bodyText(doc)

	price := extractPrice(text)
	bedrooms := extractBoundedCount(bedroomPattern, text, maxBedrooms)

	if price == nil && bedrooms == nil {
		return nil
	}

	method := domain.ExtractionHeuristic
	if titleFromMeta {
		method = domain.ExtractionMeta
	}

	listing := &domain.ExtractedListing{
		Title:            title,
		Description:      description,
		Price:            price,
		Currency:         "EUR",
		Bedrooms:         bedrooms,
		Bathrooms:        extractBoundedCount(bathroomPattern, text, maxBathrooms),
		Images:           extractImages(doc),
		CanonicalURL:     extractCanonical(doc, sourceURL),
		ExtractionMethod: method,
	}

	if locality := matchLocality(text, sourceURL); locality != "" {
		listing.AreaLocality = &locality
	}

	return listing
}

// extractTitle returns the page title by precedence: og:title, then the
// title tag. The second result reports whether a social/meta tag supplied
// the value.
func extractTitle(doc *goquery.Document) (title string, fromMeta bool) {
	if og, exists := doc.Find("meta[property='og:title']").Attr("content"); exists {
		if trimmed := strings.TrimSpace(og); trimmed != "" {
			return trimmed, true
		}
	}

	return strings.TrimSpace(doc.Find("title").First().Text()), false
}

// extractDescription returns the description by precedence: og:description,
// then generic meta description. Empty values are skipped rather than
// overwriting a higher-priority hit.
func extractDescription(doc *goquery.Document) *string {
	for _, selector := range []string{
		"meta[property='og:description']",
		"meta[name='description']",
	} {
		if content, exists := doc.Find(selector).Attr("content"); exists {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				return &trimmed
			}
		}
	}

	return nil
}

// extractImages returns the og:image URL when present.
func extractImages(doc *goquery.Document) []string {
	var images []string

	doc.Find("meta[property='og:image']").Each(func(_ int, s *goquery.Selection) {
		if content, exists := s.Attr("content"); exists {
			if trimmed := strings.TrimSpace(content); trimmed != "" {
				images = append(images, trimmed)
			}
		}
	})

	return images
}

// extractCanonical returns the canonical link when present, else sourceURL.
func extractCanonical(doc *goquery.Document, sourceURL string) string {
	if href, exists := doc.Find("link[rel='canonical']").Attr("href"); exists {
		if trimmed := strings.TrimSpace(href); trimmed != "" {
			return trimmed
		}
	}

	return sourceURL
}

// bodyText returns the page body text with non-content elements stripped.
func bodyText(doc *goquery.Document) string {
	body := doc.Find("body").First()
	if body.Length() == 0 {
		return ""
	}

	body.Find("script, style, nav, header, footer").Remove()

	return strings.TrimSpace(body.Text())
}

// extractPrice runs the price rule table over the text and parses the first
// capture with locale disambiguation.
func extractPrice(text string) *float64 {
	for _, rule := range priceRules {
		match := rule.pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		if price, ok := parseLocalizedNumber(match[1]); ok && price > 0 {
			return &price
		}
	}

	return nil
}

// parseLocalizedNumber parses a figure that may use US (1,200.00) or
// European (1.200,00) separators. A comma after the last period implies
// European formatting; otherwise US formatting is assumed. A lone trailing
// separator group of exactly three digits is a thousands group in either
// locale (1,200 and 1.200 both mean twelve hundred).
func parseLocalizedNumber(raw string) (float64, bool) {
	lastComma := strings.LastIndex(raw, ",")
	lastDot := strings.LastIndex(raw, ".")

	european := lastComma > lastDot

	if lastComma > lastDot && lastDot == -1 &&
		strings.Count(raw, ",") == 1 && len(raw)-lastComma-1 == 3 {
		european = false
	}
	if lastDot > lastComma && lastComma == -1 &&
		strings.Count(raw, ".") == 1 && len(raw)-lastDot-1 == 3 {
		european = true
	}

	var cleaned string
	if european {
		// Dots are thousands separators, comma is the decimal mark.
		cleaned = strings.ReplaceAll(raw, ".", "")
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(raw, ",", "")
	}

	value, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}

	return value, true
}

// extractBoundedCount parses a room count with the given pattern, discarding
// values above the bound.
func extractBoundedCount(pattern *regexp.Regexp, text string, maxValue int) *int {
	match := pattern.FindStringSubmatch(text)
	if match == nil {
		return nil
	}

	count, err := strconv.Atoi(match[1])
	if err != nil || count > maxValue {
		return nil
	}

	return &count
}

// matchLocality checks the gazetteer against the free text first, then the
// URL path. URL matching is case- and separator-insensitive so that
// /property/st-pauls-bay/ still matches "St Paul's Bay".
func matchLocality(text, sourceURL string) string {
	lowerText := strings.ToLower(text)
	for _, locality := range gazetteer {
		if strings.Contains(lowerText, strings.ToLower(locality)) {
			return locality
		}
	}

	parsed, err := url.Parse(sourceURL)
	if err != nil {
		return ""
	}

	slugPath := slugify(parsed.Path)
	for _, locality := range gazetteer {
		if strings.Contains(slugPath, slugify(locality)) {
			return locality
		}
	}

	return ""
}

// slugify lowercases and strips everything but letters and digits.
func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
