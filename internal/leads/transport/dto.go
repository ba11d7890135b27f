// Package transport defines the wire-level DTOs shared between the lead
// modules and their HTTP surface. Other modules (ingest, assignment) depend
// on these types instead of on the services themselves.
package transport

import (
	"time"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/quality"

	"github.com/google/uuid"
)

// ContactFields is the canonical identity shape of an inbound contact.
// Missing fields are nil, never empty strings.
type ContactFields struct {
	Name  *string `json:"name"`
	Phone *string `json:"phone"`
	Email *string `json:"email"`
}

// MessageFields is the canonical message shape of an inbound event.
type MessageFields struct {
	Body       string  `json:"body"`
	ExternalID *string `json:"externalId"`
	RawPayload []byte  `json:"-"`
}

// InboundEvent is the normalized form every channel payload is reduced to
// before it reaches the dedup/upsert engine.
type InboundEvent struct {
	Source       string         `json:"source"`
	Channel      domain.Channel `json:"channel"`
	Lead         ContactFields  `json:"lead"`
	Message      MessageFields  `json:"message"`
	TriageReason string         `json:"triageReason,omitempty"`
}

// AssignmentResult reports the outcome of one assignment attempt.
type AssignmentResult struct {
	Success  bool       `json:"success"`
	AgentID  *uuid.UUID `json:"agentId,omitempty"`
	Strategy string     `json:"strategy,omitempty"`
	Reason   string     `json:"reason,omitempty"`
}

// LeadResponse is the JSON representation of a lead.
type LeadResponse struct {
	ID              uuid.UUID      `json:"id"`
	Name            *string        `json:"name"`
	Phone           *string        `json:"phone"`
	Email           *string        `json:"email"`
	Channel         domain.Channel `json:"channel"`
	Status          domain.Status  `json:"status"`
	Heat            domain.Heat    `json:"heat"`
	Score           int            `json:"score"`
	Source          *string        `json:"source,omitempty"`
	AssignedAgentID *uuid.UUID     `json:"assignedAgentId,omitempty"`
	MergedIntoID    *uuid.UUID     `json:"mergedIntoId,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	LastActivityAt  time.Time      `json:"lastActivityAt"`
}

// MessageResponse is the JSON representation of a lead message.
type MessageResponse struct {
	ID         uuid.UUID        `json:"id"`
	LeadID     uuid.UUID        `json:"leadId"`
	Direction  domain.Direction `json:"direction"`
	Channel    domain.Channel   `json:"channel"`
	Body       string           `json:"body"`
	ExternalID *string          `json:"externalId,omitempty"`
	CreatedAt  time.Time        `json:"createdAt"`
}

// UpsertResponse is returned to the HTTP layer after one inbound event has
// been processed.
type UpsertResponse struct {
	Lead        LeadResponse      `json:"lead"`
	Message     *MessageResponse  `json:"message,omitempty"`
	IsNew       bool              `json:"isNew"`
	AlreadySeen bool              `json:"alreadySeen"`
	Assignment  *AssignmentResult `json:"assignment,omitempty"`
	Quality     *quality.Analysis `json:"quality,omitempty"`
}

// MergeRequest asks the merge engine to consolidate duplicates into a primary.
type MergeRequest struct {
	SecondaryIDs []uuid.UUID `json:"secondaryIds" validate:"required,min=1,max=20"`
}

// MergeResponse summarizes a completed merge.
type MergeResponse struct {
	Primary        LeadResponse `json:"primary"`
	MergedIDs      []uuid.UUID  `json:"mergedIds"`
	EventsReowned  int64        `json:"eventsReowned"`
	FieldsBorrowed []string     `json:"fieldsBorrowed"`
}
