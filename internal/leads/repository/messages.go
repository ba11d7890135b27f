package repository

import (
	"context"
	"errors"
	"time"

	"leadrouter_backend/internal/leads/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type Message struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	Direction  domain.Direction
	Channel    domain.Channel
	Body       string
	ExternalID *string
	RawPayload []byte
	CreatedAt  time.Time
}

const messageColumns = `id, tenant_id, lead_id, direction, channel, body, external_id, raw_payload, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var msg Message
	err := row.Scan(
		&msg.ID, &msg.TenantID, &msg.LeadID, &msg.Direction, &msg.Channel,
		&msg.Body, &msg.ExternalID, &msg.RawPayload, &msg.CreatedAt,
	)
	return msg, err
}

type CreateMessageParams struct {
	TenantID   uuid.UUID
	LeadID     uuid.UUID
	Direction  domain.Direction
	Channel    domain.Channel
	Body       string
	ExternalID *string
	RawPayload []byte
}

func (r *Repository) CreateMessage(ctx context.Context, params CreateMessageParams) (Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		INSERT INTO lead_messages (tenant_id, lead_id, direction, channel, body, external_id, raw_payload)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+messageColumns+`
	`,
		params.TenantID, params.LeadID, params.Direction, params.Channel,
		params.Body, params.ExternalID, params.RawPayload,
	))
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

// FindMessageByExternalID looks up a previously ingested message by its
// provider-assigned id. This is the idempotency key for webhook retries.
// Returns nil without error when the message has not been seen.
func (r *Repository) FindMessageByExternalID(ctx context.Context, tenantID uuid.UUID, channel domain.Channel, externalID string) (*Message, error) {
	msg, err := scanMessage(r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+`
		FROM lead_messages
		WHERE tenant_id = $1 AND channel = $2 AND external_id = $3
		LIMIT 1
	`, tenantID, channel, externalID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListMessagesByLead returns a lead's messages, oldest first.
func (r *Repository) ListMessagesByLead(ctx context.Context, tenantID, leadID uuid.UUID, limit int) ([]Message, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM lead_messages
		WHERE tenant_id = $1 AND lead_id = $2
		ORDER BY created_at ASC
		LIMIT $3
	`, tenantID, leadID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
