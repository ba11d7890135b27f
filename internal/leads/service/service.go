// Package service implements the lead lifecycle: dedup/upsert of inbound
// events, quality scoring, audit trail and duplicate merging.
package service

import (
	"context"
	"errors"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/quality"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"
	"leadrouter_backend/platform/phone"

	"github.com/google/uuid"
)

// Store is the persistence surface the service needs. Implemented by
// *repository.Repository; tests supply an in-memory fake.
type Store interface {
	Create(ctx context.Context, params repository.CreateLeadParams) (repository.Lead, error)
	GetByID(ctx context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error)
	FindByPhone(ctx context.Context, tenantID uuid.UUID, phone string) (*repository.Lead, error)
	FindByEmail(ctx context.Context, tenantID uuid.UUID, email string) (*repository.Lead, error)
	UpdateFromInbound(ctx context.Context, params repository.UpdateFromInboundParams) (repository.Lead, error)
	ApplyMerge(ctx context.Context, tenantID, leadID uuid.UUID, name, phone, email *string, score int, heat domain.Heat) error
	MarkMerged(ctx context.Context, tenantID, leadID, primaryID uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]repository.Lead, error)

	CreateMessage(ctx context.Context, params repository.CreateMessageParams) (repository.Message, error)
	FindMessageByExternalID(ctx context.Context, tenantID uuid.UUID, channel domain.Channel, externalID string) (*repository.Message, error)
	ListMessagesByLead(ctx context.Context, tenantID, leadID uuid.UUID, limit int) ([]repository.Message, error)

	AppendEvent(ctx context.Context, params repository.AppendEventParams) error
	ReassignEvents(ctx context.Context, tenantID, fromLeadID, toLeadID uuid.UUID) (int64, error)
	ListEventsByLead(ctx context.Context, tenantID, leadID uuid.UUID) ([]repository.LeadEvent, error)
}

// TriageOpener opens (or reopens) the triage item for a lead. Returns the
// item id and whether a closed item was reopened.
type TriageOpener interface {
	OpenForLead(ctx context.Context, tenantID, leadID uuid.UUID, reason string) (uuid.UUID, bool, error)
}

// Assigner routes an unassigned lead to an agent according to the tenant's
// assignment configuration.
type Assigner interface {
	AutoAssign(ctx context.Context, tenantID, leadID uuid.UUID) (transport.AssignmentResult, error)
}

type Service struct {
	store    Store
	bus      events.Bus
	log      *logger.Logger
	triage   TriageOpener
	assigner Assigner
}

func NewService(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// SetTriageOpener and SetAssigner wire the downstream modules after
// construction; both are optional and nil-safe.
func (s *Service) SetTriageOpener(t TriageOpener) { s.triage = t }
func (s *Service) SetAssigner(a Assigner)         { s.assigner = a }

// ProcessInbound runs one normalized inbound event through the full
// pipeline: idempotency check, identity resolution, create-or-update with
// upward-only heat/score, message persistence, triage and assignment.
//
// Side effects after the lead write (message, audit entry, triage,
// assignment) are best-effort: failures are logged and the lead result is
// still returned, so a webhook retry never duplicates the lead itself.
func (s *Service) ProcessInbound(ctx context.Context, tenantID uuid.UUID, event transport.InboundEvent) (transport.UpsertResponse, error) {
	const op = "leads.ProcessInbound"

	if event.Message.ExternalID != nil {
		seen, err := s.store.FindMessageByExternalID(ctx, tenantID, event.Channel, *event.Message.ExternalID)
		if err != nil {
			return transport.UpsertResponse{}, apperr.Wrap(apperr.KindInternal, "failed to check message idempotency", err).WithOp(op)
		}
		if seen != nil {
			lead, err := s.store.GetByID(ctx, tenantID, seen.LeadID)
			if err != nil {
				return transport.UpsertResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load lead for duplicate message", err).WithOp(op)
			}
			msg := toMessageResponse(*seen)
			return transport.UpsertResponse{
				Lead:        toLeadResponse(lead),
				Message:     &msg,
				AlreadySeen: true,
			}, nil
		}
	}

	analysis := quality.Analyze(event.Message.Body)

	match, err := s.resolveIdentity(ctx, tenantID, event.Lead)
	if err != nil {
		return transport.UpsertResponse{}, apperr.Wrap(apperr.KindInternal, "failed to resolve lead identity", err).WithOp(op)
	}

	var lead repository.Lead
	isNew := match == nil
	if isNew {
		lead, err = s.createLead(ctx, tenantID, event, analysis)
	} else {
		lead, err = s.updateLead(ctx, *match, event, analysis)
	}
	if err != nil {
		return transport.UpsertResponse{}, err
	}

	resp := transport.UpsertResponse{
		Lead:    toLeadResponse(lead),
		IsNew:   isNew,
		Quality: &analysis,
	}

	msg, err := s.store.CreateMessage(ctx, repository.CreateMessageParams{
		TenantID:   tenantID,
		LeadID:     lead.ID,
		Direction:  domain.DirectionInbound,
		Channel:    event.Channel,
		Body:       event.Message.Body,
		ExternalID: event.Message.ExternalID,
		RawPayload: event.Message.RawPayload,
	})
	if err != nil {
		s.log.DatabaseError("leads.create_message", err)
	} else {
		m := toMessageResponse(msg)
		resp.Message = &m
	}

	if s.triage != nil {
		reason := event.TriageReason
		if reason == "" {
			reason = triageReasonForHeat(lead.Heat)
		}
		if _, _, err := s.triage.OpenForLead(ctx, tenantID, lead.ID, reason); err != nil {
			s.log.Error("triage open failed", "lead_id", lead.ID, "error", err)
		}
	}

	if s.assigner != nil && lead.AssignedAgentID == nil {
		result, err := s.assigner.AutoAssign(ctx, tenantID, lead.ID)
		if err != nil {
			s.log.Error("auto-assignment failed", "lead_id", lead.ID, "error", err)
		} else {
			resp.Assignment = &result
			if result.Success && result.AgentID != nil {
				resp.Lead.AssignedAgentID = result.AgentID
			}
		}
	}

	s.log.WithTenantID(tenantID.String()).IngestEvent(event.Source, string(event.Channel), isNew, lead.ID.String())
	return resp, nil
}

// resolveIdentity finds an existing lead by phone first, then email. Both
// lookups exclude merged leads.
func (s *Service) resolveIdentity(ctx context.Context, tenantID uuid.UUID, contact transport.ContactFields) (*repository.Lead, error) {
	if contact.Phone != nil {
		lead, err := s.store.FindByPhone(ctx, tenantID, *contact.Phone)
		if err != nil || lead != nil {
			return lead, err
		}
	}
	if contact.Email != nil {
		return s.store.FindByEmail(ctx, tenantID, *contact.Email)
	}
	return nil, nil
}

func (s *Service) createLead(ctx context.Context, tenantID uuid.UUID, event transport.InboundEvent, analysis quality.Analysis) (repository.Lead, error) {
	const op = "leads.createLead"

	status := domain.StatusNew
	if analysis.IsQualifying() {
		status = domain.StatusQualified
	}

	var source *string
	if event.Source != "" {
		src := event.Source
		source = &src
	}

	lead, err := s.store.Create(ctx, repository.CreateLeadParams{
		TenantID: tenantID,
		Name:     event.Lead.Name,
		Phone:    event.Lead.Phone,
		Email:    event.Lead.Email,
		Channel:  event.Channel,
		Status:   status,
		Heat:     analysis.Heat,
		Score:    analysis.Score,
		Source:   source,
	})
	if err != nil {
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to create lead", err).WithOp(op)
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		TenantID:  tenantID,
		LeadID:    lead.ID,
		EventType: repository.EventLeadCreated,
		Payload: map[string]any{
			"channel": event.Channel,
			"source":  event.Source,
			"heat":    analysis.Heat,
			"score":   analysis.Score,
		},
	})

	s.bus.Publish(ctx, events.LeadCreated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  tenantID,
		Channel:   string(event.Channel),
		Source:    event.Source,
		Heat:      string(analysis.Heat),
		Score:     analysis.Score,
	})

	if status == domain.StatusQualified {
		s.bus.Publish(ctx, events.LeadQualified{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  tenantID,
			Intent:    string(analysis.Intent),
			Heat:      string(analysis.Heat),
		})
	}

	return lead, nil
}

// updateLead applies an inbound event to an existing lead. Identity fields
// backfill only when missing; heat and score only move up; a NEW lead with a
// qualifying message is promoted to QUALIFIED.
func (s *Service) updateLead(ctx context.Context, current repository.Lead, event transport.InboundEvent, analysis quality.Analysis) (repository.Lead, error) {
	const op = "leads.updateLead"

	name := backfill(current.Name, event.Lead.Name)
	phone := backfill(current.Phone, event.Lead.Phone)
	email := backfill(current.Email, event.Lead.Email)

	heat := domain.MaxHeat(current.Heat, analysis.Heat)
	score := current.Score
	if analysis.Score > score {
		score = analysis.Score
	}

	status := current.Status
	qualified := false
	if status == domain.StatusNew && analysis.IsQualifying() {
		status = domain.StatusQualified
		qualified = true
	}

	lead, err := s.store.UpdateFromInbound(ctx, repository.UpdateFromInboundParams{
		TenantID: current.TenantID,
		LeadID:   current.ID,
		Name:     name,
		Phone:    phone,
		Email:    email,
		Status:   status,
		Heat:     heat,
		Score:    score,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return repository.Lead{}, apperr.NotFound("lead disappeared during update").WithOp(op)
		}
		return repository.Lead{}, apperr.Wrap(apperr.KindInternal, "failed to update lead", err).WithOp(op)
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		TenantID:  current.TenantID,
		LeadID:    current.ID,
		EventType: repository.EventLeadUpdated,
		Payload: map[string]any{
			"channel": event.Channel,
			"score":   score,
		},
	})
	if heat != current.Heat {
		s.appendEvent(ctx, repository.AppendEventParams{
			TenantID:  current.TenantID,
			LeadID:    current.ID,
			EventType: repository.EventHeatChanged,
			Payload: map[string]any{
				"from": current.Heat,
				"to":   heat,
			},
		})
	}

	s.bus.Publish(ctx, events.LeadUpdated{
		BaseEvent: events.NewBaseEvent(),
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Channel:   string(event.Channel),
		Heat:      string(lead.Heat),
		Score:     lead.Score,
	})
	if qualified {
		s.bus.Publish(ctx, events.LeadQualified{
			BaseEvent: events.NewBaseEvent(),
			LeadID:    lead.ID,
			TenantID:  lead.TenantID,
			Intent:    string(analysis.Intent),
			Heat:      string(lead.Heat),
		})
	}

	return lead, nil
}

// GetLead returns a lead with its messages and audit trail.
func (s *Service) GetLead(ctx context.Context, tenantID, leadID uuid.UUID) (transport.LeadResponse, []transport.MessageResponse, []repository.LeadEvent, error) {
	const op = "leads.GetLead"

	lead, err := s.store.GetByID(ctx, tenantID, leadID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, nil, nil, apperr.NotFound("lead not found").WithOp(op)
		}
		return transport.LeadResponse{}, nil, nil, apperr.Wrap(apperr.KindInternal, "failed to load lead", err).WithOp(op)
	}

	msgs, err := s.store.ListMessagesByLead(ctx, tenantID, leadID, 0)
	if err != nil {
		return transport.LeadResponse{}, nil, nil, apperr.Wrap(apperr.KindInternal, "failed to load messages", err).WithOp(op)
	}
	trail, err := s.store.ListEventsByLead(ctx, tenantID, leadID)
	if err != nil {
		return transport.LeadResponse{}, nil, nil, apperr.Wrap(apperr.KindInternal, "failed to load audit trail", err).WithOp(op)
	}

	out := make([]transport.MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toMessageResponse(m))
	}
	return toLeadResponse(lead), out, trail, nil
}

// ListLeads returns the tenant's active leads, most recently touched first.
func (s *Service) ListLeads(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]transport.LeadResponse, error) {
	leads, err := s.store.List(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list leads", err).WithOp("leads.ListLeads")
	}
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, toLeadResponse(lead))
	}
	return out, nil
}

// appendEvent writes an audit entry best-effort. The trail is advisory; a
// write failure must not fail the inbound pipeline.
func (s *Service) appendEvent(ctx context.Context, params repository.AppendEventParams) {
	if err := s.store.AppendEvent(ctx, params); err != nil {
		s.log.DatabaseError("leads.append_event", err)
	}
}

func backfill(current, incoming *string) *string {
	if current != nil {
		return current
	}
	return incoming
}

func triageReasonForHeat(heat domain.Heat) string {
	switch heat {
	case domain.HeatOnFire, domain.HeatHot:
		return "hot inbound lead"
	default:
		return "new inbound activity"
	}
}

// toLeadResponse renders a lead for the API. The stored phone stays a bare
// digit string (the dedup key); only the response carries the E.164 form.
func toLeadResponse(lead repository.Lead) transport.LeadResponse {
	var display *string
	if lead.Phone != nil {
		formatted := phone.NormalizeE164(*lead.Phone)
		display = &formatted
	}
	return transport.LeadResponse{
		ID:              lead.ID,
		Name:            lead.Name,
		Phone:           display,
		Email:           lead.Email,
		Channel:         lead.Channel,
		Status:          lead.Status,
		Heat:            lead.Heat,
		Score:           lead.Score,
		Source:          lead.Source,
		AssignedAgentID: lead.AssignedAgentID,
		MergedIntoID:    lead.MergedIntoID,
		CreatedAt:       lead.CreatedAt,
		UpdatedAt:       lead.UpdatedAt,
		LastActivityAt:  lead.LastActivityAt,
	}
}

func toMessageResponse(msg repository.Message) transport.MessageResponse {
	return transport.MessageResponse{
		ID:         msg.ID,
		LeadID:     msg.LeadID,
		Direction:  msg.Direction,
		Channel:    msg.Channel,
		Body:       msg.Body,
		ExternalID: msg.ExternalID,
		CreatedAt:  msg.CreatedAt,
	}
}
