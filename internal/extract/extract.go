package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// FromHTML parses a fetched page and runs the extraction strategies in
// order: structured data first, heuristic fallback second. A nil listing
// with nil error means the page had too little signal.
func FromHTML(html, sourceURL string) (*domain.ExtractedListing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	if listing := ExtractStructured(doc, sourceURL); listing != nil {
		return listing, nil
	}

	return ExtractFallback(doc, sourceURL), nil
}
