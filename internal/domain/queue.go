// Package domain provides domain models used across the application.
package domain

import "time"

// QueuedURL status constants.
const (
	QueueStatusNew        = "new"
	QueueStatusProcessing = "processing"
	QueueStatusDone       = "done"
	QueueStatusError      = "error"
)

// QueuedURL represents a discovered listing URL awaiting ingestion.
// The processing status acts as a lease: a batch run claims an item by
// flipping it to processing and no other run will pick it up until the
// lease expires and the reclaim sweep resets it.
type QueuedURL struct {
	ID           string     `db:"id"            json:"id"`
	URL          string     `db:"url"           json:"url"`
	Domain       string     `db:"domain"        json:"domain"`
	Status       string     `db:"status"        json:"status"`
	RetryCount   int        `db:"retry_count"   json:"retry_count"`
	LastError    *string    `db:"last_error"    json:"last_error,omitempty"`
	DiscoveredAt time.Time  `db:"discovered_at" json:"discovered_at"`
	ProcessedAt  *time.Time `db:"processed_at"  json:"processed_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at"    json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"    json:"updated_at"`
}
