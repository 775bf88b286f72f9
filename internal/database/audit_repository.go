package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// AuditRepository appends audit events. The pipeline and admin API write
// events; nothing in this service reads them back.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append records an audit event.
func (r *AuditRepository) Append(ctx context.Context, event *domain.AuditEvent) error {
	query := `
		INSERT INTO audit_events (actor_type, actor_id, action, entity, entity_id, payload)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	payload := event.Payload
	if payload == nil {
		payload = domain.JSONBMap{}
	}

	row := r.db.QueryRowxContext(
		ctx, query,
		event.ActorType, event.ActorID, event.Action, event.Entity, event.EntityID, payload,
	)
	if err := row.Scan(&event.ID, &event.CreatedAt); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
