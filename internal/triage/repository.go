// Package triage manages the per-lead work queue: one item per lead that
// needs human attention, with a NEW -> IN_PROGRESS -> CLOSED lifecycle.
package triage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("triage item not found")

// Status is the lifecycle state of a triage item.
type Status string

const (
	StatusNew        Status = "NEW"
	StatusInProgress Status = "IN_PROGRESS"
	StatusClosed     Status = "CLOSED"
)

type Item struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	Status    Status
	Reason    string
	ClaimedBy *uuid.UUID
	ClosedBy  *uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	ClosedAt  *time.Time
}

const itemColumns = `id, tenant_id, lead_id, status, reason, claimed_by, closed_by, created_at, updated_at, closed_at`

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(
		&item.ID, &item.TenantID, &item.LeadID, &item.Status, &item.Reason,
		&item.ClaimedBy, &item.ClosedBy, &item.CreatedAt, &item.UpdatedAt, &item.ClosedAt,
	)
	return item, err
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindLatestByLead returns the lead's most recent triage item, or nil when
// the lead has never been triaged. The open/reopen decision is made against
// this row.
func (r *Repository) FindLatestByLead(ctx context.Context, tenantID, leadID uuid.UUID) (*Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		SELECT `+itemColumns+`
		FROM triage_items
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, tenantID, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *Repository) Create(ctx context.Context, tenantID, leadID uuid.UUID, reason string) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		INSERT INTO triage_items (tenant_id, lead_id, status, reason)
		VALUES ($1, $2, 'NEW', $3)
		RETURNING `+itemColumns+`
	`, tenantID, leadID, reason))
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Reopen reactivates a closed item for fresh inbound activity. The claim and
// close markers are cleared so the item goes back through the full lifecycle.
func (r *Repository) Reopen(ctx context.Context, tenantID, itemID uuid.UUID, reason string) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		UPDATE triage_items
		SET status = 'NEW', reason = $3, claimed_by = NULL, closed_by = NULL,
			closed_at = NULL, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = 'CLOSED'
		RETURNING `+itemColumns+`
	`, tenantID, itemID, reason))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// Claim moves a NEW item to IN_PROGRESS for the given agent. Returns
// ErrNotFound when the item does not exist or is not claimable.
func (r *Repository) Claim(ctx context.Context, tenantID, itemID, agentID uuid.UUID) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		UPDATE triage_items
		SET status = 'IN_PROGRESS', claimed_by = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status = 'NEW'
		RETURNING `+itemColumns+`
	`, tenantID, itemID, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// Close resolves an open item. Returns ErrNotFound when the item does not
// exist or is already closed.
func (r *Repository) Close(ctx context.Context, tenantID, itemID, closedBy uuid.UUID) (Item, error) {
	item, err := scanItem(r.pool.QueryRow(ctx, `
		UPDATE triage_items
		SET status = 'CLOSED', closed_by = $3, closed_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2 AND status <> 'CLOSED'
		RETURNING `+itemColumns+`
	`, tenantID, itemID, closedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrNotFound
	}
	return item, err
}

// ListOpen returns the tenant's open queue, oldest first so the longest
// waiting leads surface at the top.
func (r *Repository) ListOpen(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Item, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM triage_items
		WHERE tenant_id = $1 AND status <> 'CLOSED'
		ORDER BY created_at ASC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// ListStaleOpen returns unclaimed items created before the cutoff, across
// all tenants. Used by the background sweep.
func (r *Repository) ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]Item, error) {
	if limit <= 0 || limit > 1000 {
		limit = 500
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+itemColumns+`
		FROM triage_items
		WHERE status = 'NEW' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2
	`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]Item, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
