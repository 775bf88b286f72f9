package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ikanisa/dar-ingest/internal/domain"
)

// ErrQueueEmpty is returned when ClaimBatch finds no claimable URLs.
// Callers should check with errors.Is().
var ErrQueueEmpty = errors.New("no queued URLs available")

// Queue repository constants.
const (
	defaultQueueListLimit = 50

	// queueSelectColumns lists columns for SELECT queries on queued_urls.
	queueSelectColumns = `id, url, domain, status, retry_count, last_error,
		discovered_at, processed_at, created_at, updated_at`
)

// QueueRepository handles database operations for the ingestion queue.
type QueueRepository struct {
	db *sqlx.DB
}

// NewQueueRepository creates a new queue repository.
func NewQueueRepository(db *sqlx.DB) *QueueRepository {
	return &QueueRepository{db: db}
}

// Enqueue inserts a discovered URL. Re-discovering a known URL is a no-op.
// Returns true when the URL was newly queued.
func (r *QueueRepository) Enqueue(ctx context.Context, url, domainName string) (bool, error) {
	query := `
		INSERT INTO queued_urls (url, domain)
		VALUES ($1, $2)
		ON CONFLICT (url) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, url, domainName)
	if err != nil {
		return false, fmt.Errorf("failed to enqueue URL: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	return n > 0, nil
}

// ClaimBatch selects up to limit new URLs in discovery order and flips them
// to processing, skipping rows locked by a concurrent run. The processing
// status is the lease; only the reclaim sweep releases it on a crashed run.
// Returns ErrQueueEmpty if nothing is claimable.
func (r *QueueRepository) ClaimBatch(ctx context.Context, limit int) ([]*domain.QueuedURL, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin claim transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	query := `
		SELECT ` + queueSelectColumns + `
		FROM queued_urls
		WHERE status = 'new'
		ORDER BY discovered_at ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`

	var urls []*domain.QueuedURL
	if selectErr := tx.SelectContext(ctx, &urls, query, limit); selectErr != nil {
		return nil, fmt.Errorf("failed to select claimable URLs: %w", selectErr)
	}
	if len(urls) == 0 {
		return nil, ErrQueueEmpty
	}

	ids := make([]string, len(urls))
	for i, u := range urls {
		ids[i] = u.ID
	}

	updateQuery := `UPDATE queued_urls SET status = 'processing', updated_at = NOW() WHERE id = ANY($1)`
	if _, updateErr := tx.ExecContext(ctx, updateQuery, pq.Array(ids)); updateErr != nil {
		return nil, fmt.Errorf("failed to mark claimed URLs processing: %w", updateErr)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, fmt.Errorf("failed to commit claim transaction: %w", commitErr)
	}

	for _, u := range urls {
		u.Status = domain.QueueStatusProcessing
	}
	return urls, nil
}

// MarkDone marks a queued URL as processed.
func (r *QueueRepository) MarkDone(ctx context.Context, id string) error {
	query := `
		UPDATE queued_urls
		SET status = 'done',
			processed_at = NOW(),
			last_error = NULL,
			updated_at = NOW()
		WHERE id = $1
	`

	result, execErr := r.db.ExecContext(ctx, query, id)
	return execRequireRows(result, execErr, fmt.Errorf("queued URL not found: %s", id))
}

// MarkFailed increments retry_count and records the error. The URL goes back
// to new for another attempt until maxRetries is reached, then stays in error.
func (r *QueueRepository) MarkFailed(ctx context.Context, id, lastError string, maxRetries int) error {
	query := `
		UPDATE queued_urls
		SET retry_count = retry_count + 1,
			last_error = $1,
			status = CASE
				WHEN retry_count + 1 >= $2 THEN 'error'
				ELSE 'new'
			END,
			updated_at = NOW()
		WHERE id = $3
	`

	result, execErr := r.db.ExecContext(ctx, query, lastError, maxRetries, id)
	return execRequireRows(result, execErr, fmt.Errorf("queued URL not found: %s", id))
}

// ReclaimStale releases processing leases older than the timeout back to new.
// Returns the number of reclaimed URLs.
func (r *QueueRepository) ReclaimStale(ctx context.Context, leaseTimeout time.Duration) (int, error) {
	query := `
		UPDATE queued_urls
		SET status = 'new', updated_at = NOW()
		WHERE status = 'processing'
		  AND updated_at < NOW() - ($1 * INTERVAL '1 second')
	`

	result, err := r.db.ExecContext(ctx, query, int(leaseTimeout.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to reclaim stale URLs: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read reclaim result: %w", err)
	}
	return int(n), nil
}

// QueueFilters represents filtering options for listing queued URLs.
type QueueFilters struct {
	Status string
	Domain string
	Limit  int
	Offset int
}

// List returns queued URLs with filtering and pagination, newest first.
func (r *QueueRepository) List(ctx context.Context, filters QueueFilters) ([]*domain.QueuedURL, error) {
	var conditions []string
	args := []any{}
	argIndex := 1

	if filters.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIndex))
		args = append(args, filters.Status)
		argIndex++
	}
	if filters.Domain != "" {
		conditions = append(conditions, fmt.Sprintf("domain = $%d", argIndex))
		args = append(args, filters.Domain)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := filters.Limit
	if limit <= 0 {
		limit = defaultQueueListLimit
	}
	offset := filters.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM queued_urls
		%s
		ORDER BY discovered_at DESC
		LIMIT $%d OFFSET $%d
	`, queueSelectColumns, whereClause, argIndex, argIndex+1)
	args = append(args, limit, offset)

	var urls []*domain.QueuedURL
	if err := r.db.SelectContext(ctx, &urls, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list queued URLs: %w", err)
	}

	if urls == nil {
		urls = []*domain.QueuedURL{}
	}
	return urls, nil
}

// QueueStats contains aggregate counts by status for the queue.
type QueueStats struct {
	TotalNew        int `json:"total_new"`
	TotalProcessing int `json:"total_processing"`
	TotalDone       int `json:"total_done"`
	TotalError      int `json:"total_error"`
}

// Stats returns aggregate counts of queued URLs grouped by status.
func (r *QueueRepository) Stats(ctx context.Context) (*QueueStats, error) {
	query := `SELECT status, COUNT(*) FROM queued_urls GROUP BY status`

	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query queue stats: %w", err)
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var status string
		var count int
		if scanErr := rows.Scan(&status, &count); scanErr != nil {
			return nil, fmt.Errorf("failed to scan queue stats row: %w", scanErr)
		}
		switch status {
		case domain.QueueStatusNew:
			stats.TotalNew = count
		case domain.QueueStatusProcessing:
			stats.TotalProcessing = count
		case domain.QueueStatusDone:
			stats.TotalDone = count
		case domain.QueueStatusError:
			stats.TotalError = count
		}
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("failed to iterate queue stats: %w", rowsErr)
	}
	return stats, nil
}
