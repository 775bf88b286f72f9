// Package pipeline orchestrates one ingestion run: claim a batch of queued
// URLs, then fetch, extract, normalize, dedupe, fingerprint and score each
// one in sequence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ikanisa/dar-ingest/internal/database"
	"github.com/ikanisa/dar-ingest/internal/dedupe"
	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/extract"
	"github.com/ikanisa/dar-ingest/internal/fetcher"
	"github.com/ikanisa/dar-ingest/internal/logger"
	"github.com/ikanisa/dar-ingest/internal/normalize"
)

// Queue claims, releases and settles queued URLs.
type Queue interface {
	ClaimBatch(ctx context.Context, limit int) ([]*domain.QueuedURL, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id, lastError string, maxRetries int) error
	ReclaimStale(ctx context.Context, leaseTimeout time.Duration) (int, error)
}

// PolicySource loads the republication policy for a source domain.
type PolicySource interface {
	GetByDomain(ctx context.Context, domainName string) (*domain.DomainPolicy, error)
}

// PageFetcher retrieves listing pages.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Result, error)
}

// Deduper checks an incoming listing against stored inventory.
type Deduper interface {
	Check(ctx context.Context, candidate dedupe.Candidate) (*dedupe.Result, error)
}

// ListingStore persists normalized listings.
type ListingStore interface {
	Insert(ctx context.Context, listing *domain.Listing) error
	UpdateStatus(ctx context.Context, id, status string) error
}

// Fingerprinter derives a listing's fingerprint.
type Fingerprinter interface {
	Compute(ctx context.Context, listing *domain.Listing) (*domain.Fingerprint, error)
}

// FingerprintStore persists fingerprints.
type FingerprintStore interface {
	Upsert(ctx context.Context, fp *domain.Fingerprint) error
}

// Scorer evaluates a persisted listing. A nil score means scoring is
// disabled and the listing proceeds without a hold.
type Scorer interface {
	Score(ctx context.Context, listingID string) (*domain.RiskScore, error)
}

// Auditor appends audit events.
type Auditor interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
}

// Options configures a pipeline run.
type Options struct {
	BatchSize    int
	ItemDelay    time.Duration
	LeaseTimeout time.Duration
	MaxRetries   int
}

// Summary is the outcome of one pipeline run.
type Summary struct {
	RunID      string `json:"run_id"`
	Claimed    int    `json:"claimed"`
	Ingested   int    `json:"ingested"`
	Duplicates int    `json:"duplicates"`
	Skipped    int    `json:"skipped"`
	Failed     int    `json:"failed"`
	Reclaimed  int    `json:"reclaimed"`
}

// Runner executes ingestion runs.
type Runner struct {
	queue         Queue
	policies      PolicySource
	fetcher       PageFetcher
	deduper       Deduper
	listings      ListingStore
	fingerprinter Fingerprinter
	fingerprints  FingerprintStore
	scorer        Scorer
	audits        Auditor
	opts          Options
	log           logger.Interface
}

// NewRunner wires a pipeline runner from its stages.
func NewRunner(
	queue Queue,
	policies PolicySource,
	pageFetcher PageFetcher,
	deduper Deduper,
	listings ListingStore,
	fingerprinter Fingerprinter,
	fingerprints FingerprintStore,
	scorer Scorer,
	audits Auditor,
	opts Options,
	log logger.Interface,
) *Runner {
	return &Runner{
		queue:         queue,
		policies:      policies,
		fetcher:       pageFetcher,
		deduper:       deduper,
		listings:      listings,
		fingerprinter: fingerprinter,
		fingerprints:  fingerprints,
		scorer:        scorer,
		audits:        audits,
		opts:          opts,
		log:           log,
	}
}

// itemOutcome classifies what happened to one queued URL.
type itemOutcome int

const (
	outcomeIngested itemOutcome = iota
	outcomeDuplicate
	outcomeSkipped
)

// Run executes one batch. Items are processed sequentially with a delay
// between them; a failing item is marked and never aborts the batch. The
// run starts by sweeping stale processing leases back to new.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{RunID: uuid.NewString()}
	log := r.log.With("run_id", summary.RunID)

	reclaimed, err := r.queue.ReclaimStale(ctx, r.opts.LeaseTimeout)
	if err != nil {
		log.Warn("lease reclaim sweep failed", "error", err.Error())
	} else if reclaimed > 0 {
		log.Info("reclaimed stale leases", "count", reclaimed)
	}
	summary.Reclaimed = reclaimed

	batch, err := r.queue.ClaimBatch(ctx, r.opts.BatchSize)
	if err != nil {
		if errors.Is(err, database.ErrQueueEmpty) {
			log.Info("queue empty, nothing to ingest")
			r.recordRun(ctx, summary)
			return summary, nil
		}
		return nil, fmt.Errorf("claim batch: %w", err)
	}
	summary.Claimed = len(batch)

	for i, item := range batch {
		if ctx.Err() != nil {
			log.Warn("run cancelled mid-batch", "remaining", len(batch)-i)
			break
		}
		if i > 0 && r.opts.ItemDelay > 0 {
			select {
			case <-ctx.Done():
				continue
			case <-time.After(r.opts.ItemDelay):
			}
		}

		outcome, itemErr := r.processItem(ctx, item)
		if itemErr != nil {
			summary.Failed++
			log.Error("item failed", "url", item.URL, "error", itemErr.Error())
			if markErr := r.queue.MarkFailed(ctx, item.ID, itemErr.Error(), r.opts.MaxRetries); markErr != nil {
				log.Error("mark failed errored", "id", item.ID, "error", markErr.Error())
			}
			continue
		}

		switch outcome {
		case outcomeIngested:
			summary.Ingested++
		case outcomeDuplicate:
			summary.Duplicates++
		case outcomeSkipped:
			summary.Skipped++
		}
		if markErr := r.queue.MarkDone(ctx, item.ID); markErr != nil {
			log.Error("mark done errored", "id", item.ID, "error", markErr.Error())
		}
	}

	r.recordRun(ctx, summary)
	log.Info("run complete",
		"claimed", summary.Claimed,
		"ingested", summary.Ingested,
		"duplicates", summary.Duplicates,
		"skipped", summary.Skipped,
		"failed", summary.Failed)

	return summary, nil
}

// processItem runs the full stage sequence for one queued URL.
func (r *Runner) processItem(ctx context.Context, item *domain.QueuedURL) (itemOutcome, error) {
	policy, err := r.policies.GetByDomain(ctx, item.Domain)
	if err != nil {
		if !errors.Is(err, database.ErrPolicyNotFound) {
			return 0, fmt.Errorf("policy for %s: %w", item.Domain, err)
		}
		// Unknown sources store the minimal field subset.
		r.log.Info("no policy for domain, storing minimal fields", "domain", item.Domain)
		policy = nil
	}

	page, err := r.fetcher.Fetch(ctx, item.URL)
	if err != nil {
		return 0, fmt.Errorf("fetch %s: %w", item.URL, err)
	}

	extracted, err := extract.FromHTML(page.HTML, page.FinalURL)
	if err != nil {
		return 0, fmt.Errorf("extract %s: %w", item.URL, err)
	}
	if extracted == nil {
		r.log.Info("page has no extractable listing", "url", item.URL)
		return outcomeSkipped, nil
	}

	listing := normalize.Normalize(extracted, item.Domain, policy)

	dup, err := r.deduper.Check(ctx, dedupe.Candidate{
		SourceURL:   listing.SourceURL,
		ContentHash: listing.ContentHash,
		Area:        listing.AreaLocality,
		Price:       listing.Price,
		Bedrooms:    listing.Bedrooms,
	})
	if err != nil {
		return 0, fmt.Errorf("dedupe %s: %w", item.URL, err)
	}
	if dup.IsDuplicate {
		r.log.Info("duplicate listing",
			"url", item.URL,
			"existing_id", dup.ExistingID,
			"reason", dup.Reason)
		return outcomeDuplicate, nil
	}

	if err := r.listings.Insert(ctx, listing); err != nil {
		return 0, fmt.Errorf("insert listing for %s: %w", item.URL, err)
	}

	fp, err := r.fingerprinter.Compute(ctx, listing)
	if err != nil {
		return 0, fmt.Errorf("fingerprint listing %s: %w", listing.ID, err)
	}
	if err := r.fingerprints.Upsert(ctx, fp); err != nil {
		return 0, fmt.Errorf("save fingerprint for listing %s: %w", listing.ID, err)
	}

	score, err := r.scorer.Score(ctx, listing.ID)
	if err != nil {
		return 0, fmt.Errorf("score listing %s: %w", listing.ID, err)
	}

	status := decisionStatus(score)
	if status != listing.Status {
		if err := r.listings.UpdateStatus(ctx, listing.ID, status); err != nil {
			return 0, fmt.Errorf("update status for listing %s: %w", listing.ID, err)
		}
	}

	return outcomeIngested, nil
}

// decisionStatus maps an automated score to the listing's publication
// status. A nil score means scoring was disabled; the listing publishes.
func decisionStatus(score *domain.RiskScore) string {
	if score == nil {
		return domain.ListingStatusApproved
	}
	switch score.Status {
	case domain.RiskStatusOK:
		return domain.ListingStatusApproved
	case domain.RiskStatusHold:
		return domain.ListingStatusHoldForReview
	default:
		return domain.ListingStatusPending
	}
}

// recordRun appends the audit event for a completed run. Failure to record
// is logged but never fails the run.
func (r *Runner) recordRun(ctx context.Context, summary *Summary) {
	event := &domain.AuditEvent{
		ActorType: domain.ActorTypeSystem,
		ActorID:   "pipeline",
		Action:    domain.AuditActionPipelineRun,
		Entity:    "batch",
		EntityID:  summary.RunID,
		Payload: domain.JSONBMap{
			"claimed":    summary.Claimed,
			"ingested":   summary.Ingested,
			"duplicates": summary.Duplicates,
			"skipped":    summary.Skipped,
			"failed":     summary.Failed,
			"reclaimed":  summary.Reclaimed,
		},
	}
	if err := r.audits.Append(ctx, event); err != nil {
		r.log.Error("audit event append failed", "action", event.Action, "error", err.Error())
	}
}
