package repository

import (
	"context"
	"errors"
	"time"

	"leadrouter_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("lead not found")

type Repository struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type Lead struct {
	ID              uuid.UUID
	TenantID        uuid.UUID
	Name            *string
	Phone           *string
	Email           *string
	Channel         domain.Channel
	Status          domain.Status
	Heat            domain.Heat
	Score           int
	Source          *string
	AssignedAgentID *uuid.UUID
	MergedIntoID    *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastActivityAt  time.Time
}

const leadColumns = `id, tenant_id, name, phone, email, channel, status, heat, score,
		source, assigned_agent_id, merged_into_id, created_at, updated_at, last_activity_at`

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Name, &lead.Phone, &lead.Email,
		&lead.Channel, &lead.Status, &lead.Heat, &lead.Score,
		&lead.Source, &lead.AssignedAgentID, &lead.MergedIntoID,
		&lead.CreatedAt, &lead.UpdatedAt, &lead.LastActivityAt,
	)
	return lead, err
}

type CreateLeadParams struct {
	TenantID uuid.UUID
	Name     *string
	Phone    *string
	Email    *string
	Channel  domain.Channel
	Status   domain.Status
	Heat     domain.Heat
	Score    int
	Source   *string
}

func (r *Repository) Create(ctx context.Context, params CreateLeadParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		INSERT INTO leads (tenant_id, name, phone, email, channel, status, heat, score, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+leadColumns+`
	`,
		params.TenantID, params.Name, params.Phone, params.Email,
		params.Channel, params.Status, params.Heat, params.Score, params.Source,
	))
	if err != nil {
		return Lead{}, err
	}
	return lead, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// FindByPhone resolves a lead by exact phone match within the tenant.
// MERGED leads are excluded so dedup never resurrects a consolidated record.
// Returns nil without error when no lead matches.
func (r *Repository) FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND phone = $2 AND status <> 'MERGED'
		ORDER BY created_at ASC
		LIMIT 1
	`, tenantID, phone))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

// FindByEmail resolves a lead by exact email match within the tenant.
// Returns nil without error when no lead matches.
func (r *Repository) FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND email = $2 AND status <> 'MERGED'
		ORDER BY created_at ASC
		LIMIT 1
	`, tenantID, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &lead, nil
}

type UpdateFromInboundParams struct {
	TenantID uuid.UUID
	LeadID   uuid.UUID
	Name     *string
	Phone    *string
	Email    *string
	Status   domain.Status
	Heat     domain.Heat
	Score    int
}

// UpdateFromInbound writes the already-resolved identity fields, status,
// heat and score back to the lead and bumps last_activity_at. Callers own
// the backfill/monotonicity rules; this is a plain write.
func (r *Repository) UpdateFromInbound(ctx context.Context, params UpdateFromInboundParams) (Lead, error) {
	lead, err := scanLead(r.pool.QueryRow(ctx, `
		UPDATE leads
		SET name = $3, phone = $4, email = $5, status = $6, heat = $7, score = $8,
			last_activity_at = now(), updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+leadColumns+`
	`,
		params.TenantID, params.LeadID, params.Name, params.Phone, params.Email,
		params.Status, params.Heat, params.Score,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdateAssignment sets or clears the lead's assigned agent.
func (r *Repository) UpdateAssignment(ctx context.Context, tenantID, leadID uuid.UUID, agentID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET assigned_agent_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID, agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ApplyMerge writes the consolidated identity fields, score and heat onto
// the primary lead of a merge.
func (r *Repository) ApplyMerge(ctx context.Context, tenantID, leadID uuid.UUID, name, phone, email *string, score int, heat domain.Heat) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET name = $3, phone = $4, email = $5, score = $6, heat = $7, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID, name, phone, email, score, heat)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkMerged soft-terminates a secondary lead, pointing it at the primary.
// Merged leads keep their rows forever; they are only excluded from active
// pipelines.
func (r *Repository) MarkMerged(ctx context.Context, tenantID, leadID, primaryID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE leads SET status = 'MERGED', merged_into_id = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, leadID, primaryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns the tenant's active leads, most recently touched first.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Lead, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+`
		FROM leads
		WHERE tenant_id = $1 AND status <> 'MERGED'
		ORDER BY last_activity_at DESC
		LIMIT $2 OFFSET $3
	`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	leads := make([]Lead, 0)
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// CountOpenByAgent returns the number of open (non-terminal) leads per agent
// for the tenant. Agents with no open leads are absent from the map.
func (r *Repository) CountOpenByAgent(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT assigned_agent_id, COUNT(*)
		FROM leads
		WHERE tenant_id = $1
			AND assigned_agent_id IS NOT NULL
			AND status NOT IN ('WON', 'LOST', 'MERGED')
		GROUP BY assigned_agent_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	loads := make(map[uuid.UUID]int)
	for rows.Next() {
		var agentID uuid.UUID
		var count int
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		loads[agentID] = count
	}
	return loads, rows.Err()
}
