package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit event types appended to lead_events.
const (
	EventLeadCreated  = "LEAD_CREATED"
	EventLeadUpdated  = "LEAD_UPDATED"
	EventLeadAssigned = "LEAD_ASSIGNED"
	EventHeatChanged  = "HEAT_CHANGED"
	EventLeadsMerged  = "LEADS_MERGED"
)

// LeadEvent is an immutable audit entry. Rows are appended and re-owned
// during merges, never mutated or deleted.
type LeadEvent struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

type AppendEventParams struct {
	TenantID  uuid.UUID
	LeadID    uuid.UUID
	EventType string
	Payload   any
}

// AppendEvent writes one audit entry. The payload is marshalled to JSON; a
// nil payload stores an empty object.
func (r *Repository) AppendEvent(ctx context.Context, params AppendEventParams) error {
	payload := []byte("{}")
	if params.Payload != nil {
		data, err := json.Marshal(params.Payload)
		if err != nil {
			return err
		}
		payload = data
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO lead_events (tenant_id, lead_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
	`, params.TenantID, params.LeadID, params.EventType, payload)
	return err
}

// ReassignEvents moves every audit entry of one lead to another. Used by the
// merge engine; events are re-owned, never copied or deleted.
func (r *Repository) ReassignEvents(ctx context.Context, tenantID, fromLeadID, toLeadID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE lead_events SET lead_id = $3
		WHERE tenant_id = $1 AND lead_id = $2
	`, tenantID, fromLeadID, toLeadID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// ListEventsByLead returns a lead's audit trail, oldest first.
func (r *Repository) ListEventsByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]LeadEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, lead_id, event_type, payload, created_at
		FROM lead_events
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC
	`, tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]LeadEvent, 0)
	for rows.Next() {
		var item LeadEvent
		if err := rows.Scan(&item.ID, &item.TenantID, &item.LeadID, &item.EventType, &item.Payload, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
