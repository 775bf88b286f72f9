package risk

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

type mockListingReader struct {
	listings map[string]*domain.Listing
}

func (m *mockListingReader) GetByID(_ context.Context, id string) (*domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return nil, errors.New("listing not found")
	}
	return l, nil
}

type mockFingerprintStore struct {
	fingerprints map[string]*domain.Fingerprint
	dupeCount    int
	photoReuse   []PhotoReuse
}

func (m *mockFingerprintStore) Upsert(_ context.Context, fp *domain.Fingerprint) error {
	m.fingerprints[fp.ListingID] = fp
	return nil
}

func (m *mockFingerprintStore) GetByListing(_ context.Context, listingID string) (*domain.Fingerprint, error) {
	fp, ok := m.fingerprints[listingID]
	if !ok {
		return nil, errors.New("fingerprint not found")
	}
	return fp, nil
}

func (m *mockFingerprintStore) CountByHashExcept(context.Context, string, string) (int, error) {
	return m.dupeCount, nil
}

func (m *mockFingerprintStore) FindPhotoReuse(context.Context, []string, string) ([]PhotoReuse, error) {
	return m.photoReuse, nil
}

type mockScoreStore struct {
	saved *domain.RiskScore
}

func (m *mockScoreStore) Upsert(_ context.Context, score *domain.RiskScore) error {
	m.saved = score
	return nil
}

type mockPriceStats struct {
	avg   float64
	count int
	err   error
}

func (m *mockPriceStats) LocalityPriceStats(context.Context, string) (float64, int, error) {
	return m.avg, m.count, m.err
}

func strPtr(s string) *string   { return &s }
func fltPtr(f float64) *float64 { return &f }

func cleanListing(id string) *domain.Listing {
	return &domain.Listing{
		ID:           id,
		Title:        "Seafront Apartment",
		Price:        fltPtr(300_000),
		Address:      strPtr("12, Tower Road"),
		AreaLocality: strPtr("Sliema"),
		Images:       domain.StringSlice{"https://cdn.example.com/a.jpg"},
		SourceDomain: "example.com",
		PostedBy:     strPtr("agent-1"),
	}
}

func newScorer(l *mockListingReader, f *mockFingerprintStore, s *mockScoreStore, p *mockPriceStats, enabled bool) *Scorer {
	return NewScorer(l, f, s, p, enabled, logger.NewNoOp())
}

func TestScoreCleanListing(t *testing.T) {
	listing := cleanListing("lst-1")
	fps := &mockFingerprintStore{fingerprints: map[string]*domain.Fingerprint{
		"lst-1": {ListingID: "lst-1", FingerprintHash: "abc", PhotoHashes: domain.StringSlice{"p1"}},
	}}
	scores := &mockScoreStore{}
	stats := &mockPriceStats{avg: 320_000, count: 12}

	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, stats, true)
	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)

	assert.Equal(t, 0, score.RiskScore)
	assert.Equal(t, domain.RiskLevelLow, score.RiskLevel)
	assert.Equal(t, domain.RiskStatusOK, score.Status)
	assert.Empty(t, score.Reasons)
	require.NotNil(t, scores.saved)
	assert.Equal(t, score, scores.saved)
}

func TestScoreMultipleSignalsAccumulate(t *testing.T) {
	// Duplicate fingerprint, cross-poster photo reuse and no photos on the
	// listing itself: 40 + 35 + 15 = 90, high, hold.
	listing := cleanListing("lst-1")
	listing.Images = domain.StringSlice{}

	fps := &mockFingerprintStore{
		fingerprints: map[string]*domain.Fingerprint{
			"lst-1": {ListingID: "lst-1", FingerprintHash: "abc", PhotoHashes: domain.StringSlice{"p1"}},
		},
		dupeCount:  2,
		photoReuse: []PhotoReuse{{ListingID: "lst-9", PostedBy: strPtr("agent-2")}},
	}
	scores := &mockScoreStore{}
	stats := &mockPriceStats{avg: 320_000, count: 12}

	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, stats, true)
	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)

	assert.Equal(t, 90, score.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, score.RiskLevel)
	assert.Equal(t, domain.RiskStatusHold, score.Status)
	assert.Len(t, score.Reasons, 3)
}

func TestScorePhotoReuseSamePosterIgnored(t *testing.T) {
	listing := cleanListing("lst-1")
	fps := &mockFingerprintStore{
		fingerprints: map[string]*domain.Fingerprint{
			"lst-1": {ListingID: "lst-1", FingerprintHash: "abc", PhotoHashes: domain.StringSlice{"p1"}},
		},
		photoReuse: []PhotoReuse{
			{ListingID: "lst-1", PostedBy: strPtr("agent-2")},
			{ListingID: "lst-5", PostedBy: strPtr("agent-1")},
		},
	}
	scores := &mockScoreStore{}
	stats := &mockPriceStats{avg: 320_000, count: 12}

	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, stats, true)
	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)

	assert.Equal(t, 0, score.RiskScore)
}

func TestScoreMissingLocation(t *testing.T) {
	listing := cleanListing("lst-1")
	listing.Address = nil
	listing.AreaLocality = nil

	fps := &mockFingerprintStore{fingerprints: map[string]*domain.Fingerprint{
		"lst-1": {ListingID: "lst-1", FingerprintHash: "abc"},
	}}
	scores := &mockScoreStore{}

	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, &mockPriceStats{}, true)
	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)

	assert.Equal(t, WeightMissingLocation, score.RiskScore)
	assert.Equal(t, domain.RiskLevelLow, score.RiskLevel)
	assert.Equal(t, domain.RiskStatusOK, score.Status)
}

func TestScorePriceOutlier(t *testing.T) {
	tests := []struct {
		name  string
		price float64
		avg   float64
		count int
		fires bool
	}{
		{"far above average", 900_000, 250_000, 10, true},
		{"far below average", 40_000, 250_000, 10, true},
		{"within range", 300_000, 250_000, 10, false},
		{"sample too small", 900_000, 250_000, 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			listing := cleanListing("lst-1")
			listing.Price = fltPtr(tt.price)

			fps := &mockFingerprintStore{fingerprints: map[string]*domain.Fingerprint{
				"lst-1": {ListingID: "lst-1", FingerprintHash: "abc"},
			}}
			scores := &mockScoreStore{}
			stats := &mockPriceStats{avg: tt.avg, count: tt.count}

			scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, stats, true)
			score, err := scorer.Score(context.Background(), "lst-1")
			require.NoError(t, err)

			if tt.fires {
				assert.Equal(t, WeightPriceOutlier, score.RiskScore)
			} else {
				assert.Equal(t, 0, score.RiskScore)
			}
		})
	}
}

func TestScoreStatsFailureDoesNotBlockScoring(t *testing.T) {
	listing := cleanListing("lst-1")
	fps := &mockFingerprintStore{fingerprints: map[string]*domain.Fingerprint{
		"lst-1": {ListingID: "lst-1", FingerprintHash: "abc"},
	}}
	scores := &mockScoreStore{}
	stats := &mockPriceStats{err: errors.New("stats query failed")}

	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{"lst-1": listing}}, fps, scores, stats, true)
	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.Equal(t, 0, score.RiskScore)
}

func TestScoreKillSwitchSkips(t *testing.T) {
	scores := &mockScoreStore{}
	scorer := newScorer(&mockListingReader{}, &mockFingerprintStore{}, scores, &mockPriceStats{}, false)

	score, err := scorer.Score(context.Background(), "lst-1")
	require.NoError(t, err)
	assert.Nil(t, score)
	assert.Nil(t, scores.saved)
}

func TestScoreMissingListingFails(t *testing.T) {
	scorer := newScorer(&mockListingReader{listings: map[string]*domain.Listing{}}, &mockFingerprintStore{}, &mockScoreStore{}, &mockPriceStats{}, true)

	_, err := scorer.Score(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load listing")
}
