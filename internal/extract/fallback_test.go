package extract_test

import (
	"testing"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/extract"
)

func TestExtractFallbackFromOpenGraph(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="3 Bedroom Apartment in Sliema - €450,000">
<meta property="og:description" content="Spacious apartment with 2 bathrooms.">
<meta property="og:image" content="https://cdn.example.com/photo.jpg">
<title>fallback title</title>
</head><body></body></html>`

	listing := extract.ExtractFallback(parseDoc(t, html), testSourceURL)
	if listing == nil {
		t.Fatal("expected a listing")
	}

	if listing.ExtractionMethod != domain.ExtractionMeta {
		t.Errorf("method = %q, want meta", listing.ExtractionMethod)
	}
	if listing.Title != "3 Bedroom Apartment in Sliema - €450,000" {
		t.Errorf("title = %q", listing.Title)
	}
	if listing.Price == nil || *listing.Price != 450000 {
		t.Errorf("price = %v, want 450000", listing.Price)
	}
	if listing.Bedrooms == nil || *listing.Bedrooms != 3 {
		t.Errorf("bedrooms = %v, want 3", listing.Bedrooms)
	}
	if listing.Bathrooms == nil || *listing.Bathrooms != 2 {
		t.Errorf("bathrooms = %v, want 2", listing.Bathrooms)
	}
	if listing.AreaLocality == nil || *listing.AreaLocality != "Sliema" {
		t.Errorf("locality = %v, want Sliema", listing.AreaLocality)
	}
	if len(listing.Images) != 1 || listing.Images[0] != "https://cdn.example.com/photo.jpg" {
		t.Errorf("images = %v", listing.Images)
	}
}

func TestExtractFallbackTitlePrecedence(t *testing.T) {
	// og:title absent: the title tag supplies the value, tagged heuristic.
	html := `<html><head>
<title>2 bed flat Gzira EUR 250000</title>
</head><body></body></html>`

	listing := extract.ExtractFallback(parseDoc(t, html), testSourceURL)
	if listing == nil {
		t.Fatal("expected a listing")
	}
	if listing.ExtractionMethod != domain.ExtractionHeuristic {
		t.Errorf("method = %q, want heuristic", listing.ExtractionMethod)
	}
	if listing.Title != "2 bed flat Gzira EUR 250000" {
		t.Errorf("title = %q", listing.Title)
	}
}

func TestExtractFallbackPriceLocales(t *testing.T) {
	tests := []struct {
		name string
		text string
		want float64
	}{
		{"us formatting", "Apartment for €1,200,000.50", 1200000.50},
		{"european formatting", "Apartment for €1.200.000,50", 1200000.50},
		{"plain integer", "Apartment for €300000", 300000},
		{"european thousands only", "Apartment for €1.200", 1200},
		{"us thousands only", "Apartment for €1,200", 1200},
		{"eur suffix", "House at 425000 EUR with garden", 425000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := `<html><head><title>` + tt.text + `</title></head><body></body></html>`

			listing := extract.ExtractFallback(parseDoc(t, html), testSourceURL)
			if listing == nil {
				t.Fatal("expected a listing")
			}
			if listing.Price == nil || *listing.Price != tt.want {
				t.Errorf("price = %v, want %v", listing.Price, tt.want)
			}
		})
	}
}

func TestExtractFallbackBoundedCounts(t *testing.T) {
	// 25 bedrooms exceeds the bound and must be discarded; the price keeps
	// the listing alive.
	html := `<html><head>
<title>25 bedroom palace €900,000</title>
</head><body></body></html>`

	listing := extract.ExtractFallback(parseDoc(t, html), testSourceURL)
	if listing == nil {
		t.Fatal("expected a listing")
	}
	if listing.Bedrooms != nil {
		t.Errorf("bedrooms = %v, want nil (out of bounds)", listing.Bedrooms)
	}
}

func TestExtractFallbackLocalityFromURLPath(t *testing.T) {
	html := `<html><head><title>3 bed townhouse for sale</title></head><body></body></html>`

	listing := extract.ExtractFallback(parseDoc(t, html), "https://props.example.com/property/st-pauls-bay/991")
	if listing == nil {
		t.Fatal("expected a listing")
	}
	if listing.AreaLocality == nil || *listing.AreaLocality != "St Paul's Bay" {
		t.Errorf("locality = %v, want St Paul's Bay", listing.AreaLocality)
	}
}

func TestExtractFallbackTextBeatsURL(t *testing.T) {
	html := `<html><head><title>2 bed flat in Msida</title></head><body></body></html>`

	listing := extract.ExtractFallback(parseDoc(t, html), "https://props.example.com/property/sliema/1")
	if listing == nil {
		t.Fatal("expected a listing")
	}
	if listing.AreaLocality == nil || *listing.AreaLocality != "Msida" {
		t.Errorf("locality = %v, want Msida (text checked before URL)", listing.AreaLocality)
	}
}

func TestExtractFallbackInsufficientSignal(t *testing.T) {
	html := `<html><head><title>About our agency</title>
<meta name="description" content="We sell property across the islands.">
</head><body></body></html>`

	if listing := extract.ExtractFallback(parseDoc(t, html), testSourceURL); listing != nil {
		t.Errorf("expected nil without price or bedrooms, got %+v", listing)
	}
}

func TestFromHTMLPrefersStructured(t *testing.T) {
	html := `<html><head>
<meta property="og:title" content="meta title €100,000">
<script type="application/ld+json">{"@type": "Apartment", "name": "structured title", "offers": {"price": 100000}}</script>
</head><body></body></html>`

	listing, err := extract.FromHTML(html, testSourceURL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if listing == nil || listing.Title != "structured title" {
		t.Fatalf("expected the structured listing, got %+v", listing)
	}
}
