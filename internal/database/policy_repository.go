package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// ErrPolicyNotFound is returned when no policy exists for a domain.
var ErrPolicyNotFound = errors.New("domain policy not found")

// PolicyRepository handles database operations for domain policies.
type PolicyRepository struct {
	db *sqlx.DB
}

// NewPolicyRepository creates a new policy repository.
func NewPolicyRepository(db *sqlx.DB) *PolicyRepository {
	return &PolicyRepository{db: db}
}

// GetByDomain returns the policy for a source domain.
func (r *PolicyRepository) GetByDomain(ctx context.Context, domainName string) (*domain.DomainPolicy, error) {
	query := `
		SELECT domain, allowed_to_republish, fields_allowed, created_at, updated_at
		FROM domain_policies
		WHERE domain = $1
	`

	var policy domain.DomainPolicy
	err := r.db.GetContext(ctx, &policy, query, domainName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPolicyNotFound
		}
		return nil, fmt.Errorf("failed to get policy for domain %s: %w", domainName, err)
	}

	return &policy, nil
}

// Upsert inserts or replaces the policy for a domain.
func (r *PolicyRepository) Upsert(ctx context.Context, policy *domain.DomainPolicy) error {
	query := `
		INSERT INTO domain_policies (domain, allowed_to_republish, fields_allowed)
		VALUES ($1, $2, $3)
		ON CONFLICT (domain) DO UPDATE SET
			allowed_to_republish = EXCLUDED.allowed_to_republish,
			fields_allowed = EXCLUDED.fields_allowed,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, policy.Domain, policy.AllowedToRepublish, policy.FieldsAllowed)
	if err != nil {
		return fmt.Errorf("failed to upsert policy for domain %s: %w", policy.Domain, err)
	}
	return nil
}

// List returns all domain policies ordered by domain.
func (r *PolicyRepository) List(ctx context.Context) ([]*domain.DomainPolicy, error) {
	query := `
		SELECT domain, allowed_to_republish, fields_allowed, created_at, updated_at
		FROM domain_policies
		ORDER BY domain ASC
	`

	var policies []*domain.DomainPolicy
	if err := r.db.SelectContext(ctx, &policies, query); err != nil {
		return nil, fmt.Errorf("failed to list domain policies: %w", err)
	}

	if policies == nil {
		policies = []*domain.DomainPolicy{}
	}
	return policies, nil
}
