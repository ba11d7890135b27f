package assignment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsRepository derives KPI raw material from the leads and triage tables.
type StatsRepository struct {
	pool *pgxpool.Pool
}

func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// AgentStats gathers per-agent signals in a handful of grouped queries.
// Agents absent from every result set simply have zero-valued stats.
func (r *StatsRepository) AgentStats(ctx context.Context, tenantID uuid.UUID, winsSince, touchesSince time.Time) (map[uuid.UUID]AgentStats, error) {
	stats := make(map[uuid.UUID]AgentStats)

	// Wins and repeat-contact wins from the leads table. A repeat win is a
	// won lead with more than one inbound message.
	rows, err := r.pool.Query(ctx, `
		SELECT l.assigned_agent_id,
			COUNT(*),
			COUNT(*) FILTER (WHERE m.message_count > 1)
		FROM leads l
		LEFT JOIN (
			SELECT lead_id, COUNT(*) AS message_count
			FROM lead_messages
			WHERE tenant_id = $1 AND direction = 'INBOUND'
			GROUP BY lead_id
		) m ON m.lead_id = l.id
		WHERE l.tenant_id = $1
			AND l.status = 'WON'
			AND l.assigned_agent_id IS NOT NULL
			AND l.updated_at >= $2
		GROUP BY l.assigned_agent_id
	`, tenantID, winsSince)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var agentID uuid.UUID
		var wins, repeatWins int
		if err := rows.Scan(&agentID, &wins, &repeatWins); err != nil {
			rows.Close()
			return nil, err
		}
		s := stats[agentID]
		s.Wins = wins
		s.RepeatWins = repeatWins
		stats[agentID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Close counts and average time-to-close from resolved triage items.
	rows, err = r.pool.Query(ctx, `
		SELECT closed_by,
			COUNT(*),
			AVG(EXTRACT(EPOCH FROM (closed_at - created_at)) / 3600.0)
		FROM triage_items
		WHERE tenant_id = $1
			AND status = 'CLOSED'
			AND closed_by IS NOT NULL
			AND closed_at >= $2
		GROUP BY closed_by
	`, tenantID, winsSince)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var agentID uuid.UUID
		var closed int
		var avgHours float64
		if err := rows.Scan(&agentID, &closed, &avgHours); err != nil {
			rows.Close()
			return nil, err
		}
		s := stats[agentID]
		s.ClosedItems = closed
		s.AvgCloseHours = avgHours
		s.HasCloseTiming = true
		stats[agentID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Recent triage touches: claims in the activity window.
	rows, err = r.pool.Query(ctx, `
		SELECT claimed_by, COUNT(*)
		FROM triage_items
		WHERE tenant_id = $1
			AND claimed_by IS NOT NULL
			AND updated_at >= $2
		GROUP BY claimed_by
	`, tenantID, touchesSince)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var agentID uuid.UUID
		var touches int
		if err := rows.Scan(&agentID, &touches); err != nil {
			rows.Close()
			return nil, err
		}
		s := stats[agentID]
		s.Touches = touches
		stats[agentID] = s
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Current open load.
	rows, err = r.pool.Query(ctx, `
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
	for rows.Next() {
		var agentID uuid.UUID
		var load int
		if err := rows.Scan(&agentID, &load); err != nil {
			return nil, err
		}
		s := stats[agentID]
		s.OpenLoad = load
		stats[agentID] = s
	}
	return stats, rows.Err()
}

// CountAssignedToday returns per-agent assignment counts since local
// midnight, derived from the audit trail. Used by AUTO_TRAIN's daily
// floor/cap fairness knobs.
func (r *StatsRepository) CountAssignedToday(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]int, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT (payload->>'agentId')::uuid, COUNT(*)
		FROM lead_events
		WHERE tenant_id = $1
			AND event_type = 'LEAD_ASSIGNED'
			AND created_at >= date_trunc('day', now())
			AND payload->>'agentId' IS NOT NULL
		GROUP BY 1
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int)
	for rows.Next() {
		var agentID uuid.UUID
		var count int
		if err := rows.Scan(&agentID, &count); err != nil {
			return nil, err
		}
		counts[agentID] = count
	}
	return counts, rows.Err()
}
