// Package agents manages the sales agents leads are routed to.
package agents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("agent not found")

// Agent is a routable member of a tenant's sales team. Capacity caps the
// number of open leads the agent can hold; nil means unlimited.
// ExternalScore is an optional manually maintained performance score (0-100)
// consulted by score-weighted assignment.
type Agent struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Name          string
	Active        bool
	Capacity      *int
	ExternalScore *int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

const agentColumns = `id, tenant_id, name, active, capacity, external_score, created_at, updated_at`

func scanAgent(row pgx.Row) (Agent, error) {
	var agent Agent
	err := row.Scan(
		&agent.ID, &agent.TenantID, &agent.Name, &agent.Active,
		&agent.Capacity, &agent.ExternalScore, &agent.CreatedAt, &agent.UpdatedAt,
	)
	return agent, err
}

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type CreateParams struct {
	TenantID      uuid.UUID
	Name          string
	Capacity      *int
	ExternalScore *int
}

func (r *Repository) Create(ctx context.Context, params CreateParams) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `
		INSERT INTO agents (tenant_id, name, active, capacity, external_score)
		VALUES ($1, $2, true, $3, $4)
		RETURNING `+agentColumns+`
	`, params.TenantID, params.Name, params.Capacity, params.ExternalScore))
	if err != nil {
		return Agent{}, err
	}
	return agent, nil
}

func (r *Repository) GetByID(ctx context.Context, tenantID, agentID uuid.UUID) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, agentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// List returns all of the tenant's agents, active and inactive.
func (r *Repository) List(ctx context.Context, tenantID uuid.UUID) ([]Agent, error) {
	return r.list(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE tenant_id = $1
		ORDER BY created_at ASC
	`, tenantID)
}

// ListActive returns the tenant's routable agents. This is the candidate
// pool every assignment strategy starts from.
func (r *Repository) ListActive(ctx context.Context, tenantID uuid.UUID) ([]Agent, error) {
	return r.list(ctx, `
		SELECT `+agentColumns+`
		FROM agents
		WHERE tenant_id = $1 AND active = true
		ORDER BY created_at ASC
	`, tenantID)
}

func (r *Repository) list(ctx context.Context, query string, tenantID uuid.UUID) ([]Agent, error) {
	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, agent)
	}
	return out, rows.Err()
}

type UpdateParams struct {
	TenantID      uuid.UUID
	AgentID       uuid.UUID
	Name          string
	Active        bool
	Capacity      *int
	ExternalScore *int
}

func (r *Repository) Update(ctx context.Context, params UpdateParams) (Agent, error) {
	agent, err := scanAgent(r.pool.QueryRow(ctx, `
		UPDATE agents
		SET name = $3, active = $4, capacity = $5, external_score = $6, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+agentColumns+`
	`, params.TenantID, params.AgentID, params.Name, params.Active, params.Capacity, params.ExternalScore))
	if errors.Is(err, pgx.ErrNoRows) {
		return Agent{}, ErrNotFound
	}
	return agent, err
}

// Deactivate removes the agent from the routing pool without deleting the
// row; historical assignments keep pointing at it.
func (r *Repository) Deactivate(ctx context.Context, tenantID, agentID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE agents SET active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
