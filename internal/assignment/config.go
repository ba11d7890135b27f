// Package assignment routes leads to agents: per-tenant strategy config,
// KPI scoring and the selector strategies themselves.
package assignment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Strategy names. ROUND_ROBIN is historically misnamed: it is a weighted
// picker, not a rotating cursor. The name is kept because tenant configs in
// the wild reference it.
type Strategy string

const (
	StrategyLeastActive Strategy = "LEAST_ACTIVE"
	StrategyRoundRobin  Strategy = "ROUND_ROBIN"
	StrategyAutoTrain   Strategy = "AUTO_TRAIN"
)

func (s Strategy) IsValid() bool {
	switch s {
	case StrategyLeastActive, StrategyRoundRobin, StrategyAutoTrain:
		return true
	}
	return false
}

// Config is a tenant's assignment policy. Rows are materialized lazily: a
// tenant that never touched its config is served DefaultConfig.
type Config struct {
	TenantID         uuid.UUID
	Strategy         Strategy
	AutoAssign       bool
	ConsiderCapacity bool
	ConsiderScore    bool

	// AUTO_TRAIN fairness knobs. MinDaily is the floor below which an agent
	// gets a probability boost; MaxDaily excludes an agent for the rest of
	// the day. Zero disables the knob.
	MinDaily int
	MaxDaily int

	UpdatedAt time.Time
}

// DefaultConfig is served when a tenant has no stored row (or the table is
// absent in this deployment).
func DefaultConfig(tenantID uuid.UUID) Config {
	return Config{
		TenantID:         tenantID,
		Strategy:         StrategyLeastActive,
		AutoAssign:       true,
		ConsiderCapacity: true,
		ConsiderScore:    false,
	}
}

type ConfigRepository struct {
	pool *pgxpool.Pool
}

func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

const configColumns = `tenant_id, strategy, auto_assign, consider_capacity, consider_score, min_daily, max_daily, updated_at`

func scanConfig(row pgx.Row) (Config, error) {
	var cfg Config
	err := row.Scan(
		&cfg.TenantID, &cfg.Strategy, &cfg.AutoAssign, &cfg.ConsiderCapacity,
		&cfg.ConsiderScore, &cfg.MinDaily, &cfg.MaxDaily, &cfg.UpdatedAt,
	)
	return cfg, err
}

// GetOrDefault returns the tenant's config, falling back to DefaultConfig
// when no row exists. A missing table (deployments that never ran the
// assignment migration) is also treated as "use defaults", never as an
// error.
func (r *ConfigRepository) GetOrDefault(ctx context.Context, tenantID uuid.UUID) (Config, error) {
	cfg, err := scanConfig(r.pool.QueryRow(ctx, `
		SELECT `+configColumns+`
		FROM assignment_configs
		WHERE tenant_id = $1
	`, tenantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return DefaultConfig(tenantID), nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "42P01" { // undefined_table
		return DefaultConfig(tenantID), nil
	}
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Upsert stores the tenant's config, materializing the row on first write.
func (r *ConfigRepository) Upsert(ctx context.Context, cfg Config) (Config, error) {
	return scanConfig(r.pool.QueryRow(ctx, `
		INSERT INTO assignment_configs (tenant_id, strategy, auto_assign, consider_capacity, consider_score, min_daily, max_daily)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			strategy = EXCLUDED.strategy,
			auto_assign = EXCLUDED.auto_assign,
			consider_capacity = EXCLUDED.consider_capacity,
			consider_score = EXCLUDED.consider_score,
			min_daily = EXCLUDED.min_daily,
			max_daily = EXCLUDED.max_daily,
			updated_at = now()
		RETURNING `+configColumns+`
	`, cfg.TenantID, cfg.Strategy, cfg.AutoAssign, cfg.ConsiderCapacity, cfg.ConsiderScore, cfg.MinDaily, cfg.MaxDaily))
}
