package service

import (
	"context"
	"errors"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

// Merge consolidates duplicate leads into a primary. The primary borrows any
// identity field it is missing from the secondaries (in request order), takes
// the maximum score and heat across the whole set, and re-owns every audit
// entry of each secondary. Secondaries are soft-terminated as MERGED and
// never deleted.
//
// A secondary that is already MERGED is skipped, so retrying a merge request
// is harmless.
func (s *Service) Merge(ctx context.Context, tenantID, primaryID uuid.UUID, req transport.MergeRequest) (transport.MergeResponse, error) {
	const op = "leads.Merge"

	primary, err := s.store.GetByID(ctx, tenantID, primaryID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.MergeResponse{}, apperr.NotFound("primary lead not found").WithOp(op)
		}
		return transport.MergeResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load primary lead", err).WithOp(op)
	}
	if primary.Status == domain.StatusMerged {
		return transport.MergeResponse{}, apperr.Conflict("primary lead has itself been merged").WithOp(op)
	}

	name, phone, email := primary.Name, primary.Phone, primary.Email
	score, heat := primary.Score, primary.Heat
	var borrowed []string
	var mergedIDs []uuid.UUID
	var eventsReowned int64
	fieldSources := make(map[string]uuid.UUID)

	for _, secondaryID := range req.SecondaryIDs {
		if secondaryID == primaryID {
			return transport.MergeResponse{}, apperr.Validation("a lead cannot be merged into itself").WithOp(op)
		}

		secondary, err := s.store.GetByID(ctx, tenantID, secondaryID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return transport.MergeResponse{}, apperr.NotFound("secondary lead not found").WithOp(op)
			}
			return transport.MergeResponse{}, apperr.Wrap(apperr.KindInternal, "failed to load secondary lead", err).WithOp(op)
		}
		if secondary.Status == domain.StatusMerged {
			continue
		}

		if name == nil && secondary.Name != nil {
			name = secondary.Name
			borrowed = append(borrowed, "name")
			fieldSources["name"] = secondaryID
		}
		if phone == nil && secondary.Phone != nil {
			phone = secondary.Phone
			borrowed = append(borrowed, "phone")
			fieldSources["phone"] = secondaryID
		}
		if email == nil && secondary.Email != nil {
			email = secondary.Email
			borrowed = append(borrowed, "email")
			fieldSources["email"] = secondaryID
		}
		if secondary.Score > score {
			score = secondary.Score
		}
		heat = domain.MaxHeat(heat, secondary.Heat)

		// Re-owning the trail is best-effort; the merge itself must not be
		// undone by an audit failure.
		moved, err := s.store.ReassignEvents(ctx, tenantID, secondaryID, primaryID)
		if err != nil {
			s.log.DatabaseError("leads.reassign_events", err)
		} else {
			eventsReowned += moved
		}

		if err := s.store.MarkMerged(ctx, tenantID, secondaryID, primaryID); err != nil {
			return transport.MergeResponse{}, apperr.Wrap(apperr.KindInternal, "failed to mark lead merged", err).WithOp(op)
		}
		mergedIDs = append(mergedIDs, secondaryID)
	}

	// Every secondary was already merged: a retried request is a no-op
	// success, not a conflict.
	if len(mergedIDs) == 0 {
		return transport.MergeResponse{
			Primary:   toLeadResponse(primary),
			MergedIDs: []uuid.UUID{},
		}, nil
	}

	if err := s.store.ApplyMerge(ctx, tenantID, primaryID, name, phone, email, score, heat); err != nil {
		return transport.MergeResponse{}, apperr.Wrap(apperr.KindInternal, "failed to update primary lead", err).WithOp(op)
	}

	s.appendEvent(ctx, repository.AppendEventParams{
		TenantID:  tenantID,
		LeadID:    primaryID,
		EventType: repository.EventLeadsMerged,
		Payload: map[string]any{
			"secondaryIds":  mergedIDs,
			"eventsReowned": eventsReowned,
			"fields":        fieldSources,
		},
	})

	s.bus.Publish(ctx, events.LeadsMerged{
		BaseEvent:     events.NewBaseEvent(),
		PrimaryLeadID: primaryID,
		SecondaryIDs:  mergedIDs,
		TenantID:      tenantID,
	})

	updated, err := s.store.GetByID(ctx, tenantID, primaryID)
	if err != nil {
		return transport.MergeResponse{}, apperr.Wrap(apperr.KindInternal, "failed to reload primary lead", err).WithOp(op)
	}

	return transport.MergeResponse{
		Primary:        toLeadResponse(updated),
		MergedIDs:      mergedIDs,
		EventsReowned:  eventsReowned,
		FieldsBorrowed: borrowed,
	}, nil
}
