// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"leadrouter_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Leads Domain Events
// =============================================================================

// LeadCreated is published when a new lead is created from an inbound event.
type LeadCreated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Channel  string    `json:"channel"`
	Source   string    `json:"source,omitempty"`
	Heat     string    `json:"heat"`
	Score    int       `json:"score"`
}

func (e LeadCreated) EventName() string { return "leads.created" }

// LeadUpdated is published when an inbound event touches an existing lead.
type LeadUpdated struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Channel  string    `json:"channel"`
	Heat     string    `json:"heat"`
	Score    int       `json:"score"`
}

func (e LeadUpdated) EventName() string { return "leads.updated" }

// LeadQualified is published when a lead is auto-promoted to QUALIFIED.
type LeadQualified struct {
	BaseEvent
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Intent   string    `json:"intent"`
	Heat     string    `json:"heat"`
}

func (e LeadQualified) EventName() string { return "leads.qualified" }

// LeadAssigned is published when a lead is assigned to an agent.
type LeadAssigned struct {
	BaseEvent
	LeadID        uuid.UUID  `json:"leadId"`
	TenantID      uuid.UUID  `json:"tenantId"`
	PreviousAgent *uuid.UUID `json:"previousAgent,omitempty"`
	NewAgent      uuid.UUID  `json:"newAgent"`
	Strategy      string     `json:"strategy"`
}

func (e LeadAssigned) EventName() string { return "leads.assigned" }

// LeadsMerged is published after duplicate leads are consolidated.
type LeadsMerged struct {
	BaseEvent
	PrimaryLeadID uuid.UUID   `json:"primaryLeadId"`
	SecondaryIDs  []uuid.UUID `json:"secondaryIds"`
	TenantID      uuid.UUID   `json:"tenantId"`
}

func (e LeadsMerged) EventName() string { return "leads.merged" }

// =============================================================================
// Triage Domain Events
// =============================================================================

// TriageOpened is published when a lead enters the triage queue.
type TriageOpened struct {
	BaseEvent
	ItemID   uuid.UUID `json:"itemId"`
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	Reason   string    `json:"reason,omitempty"`
}

func (e TriageOpened) EventName() string { return "triage.opened" }

// TriageReopened is published when a closed item is reactivated by fresh
// inbound activity.
type TriageReopened struct {
	BaseEvent
	ItemID   uuid.UUID `json:"itemId"`
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
}

func (e TriageReopened) EventName() string { return "triage.reopened" }

// TriageClosed is published when an agent resolves a triage item.
type TriageClosed struct {
	BaseEvent
	ItemID   uuid.UUID `json:"itemId"`
	LeadID   uuid.UUID `json:"leadId"`
	TenantID uuid.UUID `json:"tenantId"`
	ClosedBy uuid.UUID `json:"closedBy"`
}

func (e TriageClosed) EventName() string { return "triage.closed" }
