package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/dedupe"
	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/fetcher"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

const listingPage = `<!DOCTYPE html>
<html><head>
<script type="application/ld+json">
{
  "@type": "RealEstateListing",
  "name": "Seafront Apartment in Sliema",
  "offers": {"price": 305000, "priceCurrency": "EUR"},
  "numberOfRooms": 3,
  "address": {"@type": "PostalAddress", "streetAddress": "12, Tower Road", "addressLocality": "Sliema"},
  "image": ["https://cdn.example.com/a.jpg"]
}
</script>
</head><body></body></html>`

type mockQueue struct {
	batch    []*domain.QueuedURL
	claimErr error
	done     []string
	failed   map[string]string
	stale    int
}

func (m *mockQueue) ClaimBatch(context.Context, int) ([]*domain.QueuedURL, error) {
	if m.claimErr != nil {
		return nil, m.claimErr
	}
	return m.batch, nil
}

func (m *mockQueue) MarkDone(_ context.Context, id string) error {
	m.done = append(m.done, id)
	return nil
}

func (m *mockQueue) MarkFailed(_ context.Context, id, lastError string, _ int) error {
	if m.failed == nil {
		m.failed = map[string]string{}
	}
	m.failed[id] = lastError
	return nil
}

func (m *mockQueue) ReclaimStale(context.Context, time.Duration) (int, error) {
	return m.stale, nil
}

type mockPolicies struct {
	policy *domain.DomainPolicy
	err    error
}

func (m *mockPolicies) GetByDomain(context.Context, string) (*domain.DomainPolicy, error) {
	return m.policy, m.err
}

type mockFetcher struct {
	pages map[string]string
}

func (m *mockFetcher) Fetch(_ context.Context, rawURL string) (*fetcher.Result, error) {
	html, ok := m.pages[rawURL]
	if !ok {
		return nil, fmt.Errorf("fetch %s: connection refused", rawURL)
	}
	return &fetcher.Result{HTML: html, FinalURL: rawURL, StatusCode: 200}, nil
}

type mockDeduper struct {
	result *dedupe.Result
}

func (m *mockDeduper) Check(context.Context, dedupe.Candidate) (*dedupe.Result, error) {
	if m.result != nil {
		return m.result, nil
	}
	return &dedupe.Result{}, nil
}

type mockListings struct {
	inserted []*domain.Listing
	statuses map[string]string
	nextID   int
}

func (m *mockListings) Insert(_ context.Context, listing *domain.Listing) error {
	m.nextID++
	listing.ID = fmt.Sprintf("lst-%d", m.nextID)
	m.inserted = append(m.inserted, listing)
	return nil
}

func (m *mockListings) UpdateStatus(_ context.Context, id, status string) error {
	if m.statuses == nil {
		m.statuses = map[string]string{}
	}
	m.statuses[id] = status
	return nil
}

type mockFingerprinter struct{}

func (mockFingerprinter) Compute(_ context.Context, listing *domain.Listing) (*domain.Fingerprint, error) {
	return &domain.Fingerprint{ListingID: listing.ID, FingerprintHash: "fp-" + listing.ID}, nil
}

type mockFingerprints struct {
	saved []*domain.Fingerprint
}

func (m *mockFingerprints) Upsert(_ context.Context, fp *domain.Fingerprint) error {
	m.saved = append(m.saved, fp)
	return nil
}

type mockScorer struct {
	score *domain.RiskScore
	calls []string
}

func (m *mockScorer) Score(_ context.Context, listingID string) (*domain.RiskScore, error) {
	m.calls = append(m.calls, listingID)
	if m.score == nil {
		return nil, nil
	}
	score := *m.score
	score.ListingID = listingID
	return &score, nil
}

type mockAuditor struct {
	events []*domain.AuditEvent
}

func (m *mockAuditor) Append(_ context.Context, event *domain.AuditEvent) error {
	m.events = append(m.events, event)
	return nil
}

func fullPolicy() *domain.DomainPolicy {
	return &domain.DomainPolicy{
		Domain:             "example.com",
		AllowedToRepublish: true,
		FieldsAllowed: domain.StringSlice{
			domain.FieldTitle, domain.FieldDescription, domain.FieldImages,
			domain.FieldPrice, domain.FieldBedrooms, domain.FieldBathrooms,
			domain.FieldAddress, domain.FieldArea,
		},
	}
}

func queued(id, url string) *domain.QueuedURL {
	return &domain.QueuedURL{ID: id, URL: url, Domain: "example.com", Status: domain.QueueStatusProcessing}
}

type fixture struct {
	queue        *mockQueue
	listings     *mockListings
	fingerprints *mockFingerprints
	scorer       *mockScorer
	audits       *mockAuditor
	runner       *Runner
}

func newFixture(queue *mockQueue, pages map[string]string, dedupeResult *dedupe.Result, score *domain.RiskScore) *fixture {
	f := &fixture{
		queue:        queue,
		listings:     &mockListings{},
		fingerprints: &mockFingerprints{},
		scorer:       &mockScorer{score: score},
		audits:       &mockAuditor{},
	}
	f.runner = NewRunner(
		queue,
		&mockPolicies{policy: fullPolicy()},
		&mockFetcher{pages: pages},
		&mockDeduper{result: dedupeResult},
		f.listings,
		mockFingerprinter{},
		f.fingerprints,
		f.scorer,
		f.audits,
		Options{BatchSize: 10, LeaseTimeout: 15 * time.Minute, MaxRetries: 3},
		logger.NewNoOp(),
	)
	return f
}

func TestRunIngestsListing(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/property/1")}}
	score := &domain.RiskScore{RiskScore: 0, RiskLevel: domain.RiskLevelLow, Status: domain.RiskStatusOK}
	f := newFixture(queue, map[string]string{"https://example.com/property/1": listingPage}, nil, score)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Claimed)
	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 0, summary.Failed)

	require.Len(t, f.listings.inserted, 1)
	listing := f.listings.inserted[0]
	assert.Equal(t, "Seafront Apartment in Sliema", listing.Title)
	require.NotNil(t, listing.Price)
	assert.Equal(t, 305000.0, *listing.Price)

	require.Len(t, f.fingerprints.saved, 1)
	assert.Equal(t, listing.ID, f.fingerprints.saved[0].ListingID)
	assert.Equal(t, []string{listing.ID}, f.scorer.calls)
	assert.Equal(t, domain.ListingStatusApproved, f.listings.statuses[listing.ID])
	assert.Equal(t, []string{"q-1"}, queue.done)

	require.Len(t, f.audits.events, 1)
	assert.Equal(t, domain.AuditActionPipelineRun, f.audits.events[0].Action)
	assert.Equal(t, summary.RunID, f.audits.events[0].EntityID)
	assert.NotEmpty(t, summary.RunID)
}

func TestRunMissingPolicyStoresMinimalFields(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/property/1")}}
	listings := &mockListings{}
	runner := NewRunner(
		queue,
		&mockPolicies{err: database.ErrPolicyNotFound},
		&mockFetcher{pages: map[string]string{"https://example.com/property/1": listingPage}},
		&mockDeduper{},
		listings,
		mockFingerprinter{},
		&mockFingerprints{},
		&mockScorer{},
		&mockAuditor{},
		Options{BatchSize: 10, LeaseTimeout: 15 * time.Minute, MaxRetries: 3},
		logger.NewNoOp(),
	)

	summary, err := runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Ingested)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, []string{"q-1"}, queue.done)

	require.Len(t, listings.inserted, 1)
	listing := listings.inserted[0]
	assert.Equal(t, "Seafront Apartment in Sliema", listing.Title)
	require.NotNil(t, listing.Price)
	assert.Equal(t, 305000.0, *listing.Price)
	// Fields outside the minimal subset never persist for unknown sources.
	assert.Nil(t, listing.Description)
	assert.Nil(t, listing.Address)
	assert.Empty(t, listing.Images)
}

func TestRunHoldsHighRiskListing(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/property/1")}}
	score := &domain.RiskScore{RiskScore: 75, RiskLevel: domain.RiskLevelHigh, Status: domain.RiskStatusHold}
	f := newFixture(queue, map[string]string{"https://example.com/property/1": listingPage}, nil, score)

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.listings.inserted, 1)
	assert.Equal(t, domain.ListingStatusHoldForReview, f.listings.statuses[f.listings.inserted[0].ID])
}

func TestRunScoringDisabledPublishes(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/property/1")}}
	f := newFixture(queue, map[string]string{"https://example.com/property/1": listingPage}, nil, nil)

	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, f.listings.inserted, 1)
	assert.Equal(t, domain.ListingStatusApproved, f.listings.statuses[f.listings.inserted[0].ID])
}

func TestRunIsolatesItemFailures(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{
		queued("q-1", "https://example.com/down"),
		queued("q-2", "https://example.com/property/2"),
	}}
	f := newFixture(queue, map[string]string{"https://example.com/property/2": listingPage}, nil, nil)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 1, summary.Ingested)
	assert.Contains(t, queue.failed["q-1"], "connection refused")
	assert.Equal(t, []string{"q-2"}, queue.done)
}

func TestRunDuplicateMarkedDoneWithoutInsert(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/property/1")}}
	dup := &dedupe.Result{IsDuplicate: true, ExistingID: "lst-7", Reason: dedupe.ReasonSourceURL}
	f := newFixture(queue, map[string]string{"https://example.com/property/1": listingPage}, dup, nil)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Duplicates)
	assert.Empty(t, f.listings.inserted)
	assert.Equal(t, []string{"q-1"}, queue.done)
}

func TestRunSkipsPageWithoutListing(t *testing.T) {
	queue := &mockQueue{batch: []*domain.QueuedURL{queued("q-1", "https://example.com/about")}}
	f := newFixture(queue, map[string]string{"https://example.com/about": "<html><body><p>About us</p></body></html>"}, nil, nil)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, f.listings.inserted)
	assert.Equal(t, []string{"q-1"}, queue.done)
}

func TestRunEmptyQueue(t *testing.T) {
	queue := &mockQueue{claimErr: database.ErrQueueEmpty}
	f := newFixture(queue, nil, nil, nil)

	summary, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Claimed)
	require.Len(t, f.audits.events, 1)
}

func TestRunClaimFailure(t *testing.T) {
	queue := &mockQueue{claimErr: errors.New("connection reset")}
	f := newFixture(queue, nil, nil, nil)

	_, err := f.runner.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "claim batch")
}
