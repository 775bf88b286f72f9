package domain

import "time"

// Audit actor type constants.
const (
	ActorTypeSystem = "system"
	ActorTypeAdmin  = "admin"
)

// Audit action constants.
const (
	AuditActionPipelineRun   = "pipeline_run"
	AuditActionListingScored = "listing_scored"
	AuditActionOverride      = "risk_override"
)

// AuditEvent is an append-only record of a pipeline run or an admin action.
// This core is the author of audit rows but never reads them back.
type AuditEvent struct {
	ID        string    `db:"id"         json:"id"`
	ActorType string    `db:"actor_type" json:"actor_type"`
	ActorID   string    `db:"actor_id"   json:"actor_id"`
	Action    string    `db:"action"     json:"action"`
	Entity    string    `db:"entity"     json:"entity"`
	EntityID  string    `db:"entity_id"  json:"entity_id"`
	Payload   JSONBMap  `db:"payload"    json:"payload,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
