// Package review applies admin override decisions to scored listings.
package review

import (
	"context"
	"fmt"

	"github.com/ikanisa/dar-ingest/internal/domain"
	"github.com/ikanisa/dar-ingest/internal/logger"
)

// Override decision constants accepted from admins.
const (
	DecisionAllow  = "allow"
	DecisionHold   = "hold"
	DecisionReject = "reject"
)

// ScoreStore reads and mutates risk score rows.
type ScoreStore interface {
	GetByListing(ctx context.Context, listingID string) (*domain.RiskScore, error)
	ApplyOverride(ctx context.Context, listingID, status, reviewedBy string, notes *string) error
}

// ListingStore reads listings and updates their publication status.
type ListingStore interface {
	GetByID(ctx context.Context, id string) (*domain.Listing, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// AuditStore appends audit events.
type AuditStore interface {
	Append(ctx context.Context, event *domain.AuditEvent) error
}

// Override is an admin decision on a scored listing.
type Override struct {
	ListingID  string  `json:"listing_id"`
	Decision   string  `json:"decision"`
	ReviewedBy string  `json:"reviewed_by"`
	Notes      *string `json:"notes,omitempty"`
}

// Reviewer applies override decisions. Overrides are authoritative until
// the next automated rescore replaces the score row's status.
type Reviewer struct {
	scores   ScoreStore
	listings ListingStore
	audits   AuditStore
	log      logger.Interface
}

// NewReviewer creates a reviewer over the given stores.
func NewReviewer(scores ScoreStore, listings ListingStore, audits AuditStore, log logger.Interface) *Reviewer {
	return &Reviewer{scores: scores, listings: listings, audits: audits, log: log}
}

// statuses maps a decision to the risk status and listing status it sets.
func statuses(decision string) (riskStatus, listingStatus string, err error) {
	switch decision {
	case DecisionAllow:
		return domain.RiskStatusOK, domain.ListingStatusApproved, nil
	case DecisionHold:
		return domain.RiskStatusHold, domain.ListingStatusHoldForReview, nil
	case DecisionReject:
		return domain.RiskStatusReviewRequired, domain.ListingStatusRejected, nil
	default:
		return "", "", fmt.Errorf("unknown override decision %q", decision)
	}
}

// Apply validates and applies an override. It fails when the listing or its
// score row does not exist; re-applying the same decision is a no-op beyond
// refreshing the reviewer attribution.
func (r *Reviewer) Apply(ctx context.Context, ov Override) (*domain.RiskScore, error) {
	riskStatus, listingStatus, err := statuses(ov.Decision)
	if err != nil {
		return nil, err
	}
	if ov.ReviewedBy == "" {
		return nil, fmt.Errorf("override for listing %s missing reviewer", ov.ListingID)
	}

	if _, err := r.listings.GetByID(ctx, ov.ListingID); err != nil {
		return nil, fmt.Errorf("load listing %s: %w", ov.ListingID, err)
	}
	if _, err := r.scores.GetByListing(ctx, ov.ListingID); err != nil {
		return nil, fmt.Errorf("load risk score for listing %s: %w", ov.ListingID, err)
	}

	if err := r.scores.ApplyOverride(ctx, ov.ListingID, riskStatus, ov.ReviewedBy, ov.Notes); err != nil {
		return nil, fmt.Errorf("apply override to risk score: %w", err)
	}
	if err := r.listings.UpdateStatus(ctx, ov.ListingID, listingStatus); err != nil {
		return nil, fmt.Errorf("update listing status: %w", err)
	}

	payload := domain.JSONBMap{
		"decision":       ov.Decision,
		"risk_status":    riskStatus,
		"listing_status": listingStatus,
	}
	if ov.Notes != nil {
		payload["notes"] = *ov.Notes
	}
	event := &domain.AuditEvent{
		ActorType: domain.ActorTypeAdmin,
		ActorID:   ov.ReviewedBy,
		Action:    domain.AuditActionOverride,
		Entity:    "listing",
		EntityID:  ov.ListingID,
		Payload:   payload,
	}
	if err := r.audits.Append(ctx, event); err != nil {
		return nil, fmt.Errorf("record override audit event: %w", err)
	}

	r.log.Info("override applied",
		"listing_id", ov.ListingID,
		"decision", ov.Decision,
		"reviewed_by", ov.ReviewedBy)

	return r.scores.GetByListing(ctx, ov.ListingID)
}
