package triage

import (
	"context"
	"errors"
	"time"

	"leadrouter_backend/internal/events"
	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// Store is the persistence surface of the triage service. Implemented by
// *Repository; tests supply an in-memory fake.
type Store interface {
	FindLatestByLead(ctx context.Context, tenantID, leadID uuid.UUID) (*Item, error)
	Create(ctx context.Context, tenantID, leadID uuid.UUID, reason string) (Item, error)
	Reopen(ctx context.Context, tenantID, itemID uuid.UUID, reason string) (Item, error)
	Claim(ctx context.Context, tenantID, itemID, agentID uuid.UUID) (Item, error)
	Close(ctx context.Context, tenantID, itemID, closedBy uuid.UUID) (Item, error)
	ListOpen(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Item, error)
	ListStaleOpen(ctx context.Context, cutoff time.Time, limit int) ([]Item, error)
}

type Service struct {
	store Store
	bus   events.Bus
	log   *logger.Logger
}

func NewService(store Store, bus events.Bus, log *logger.Logger) *Service {
	return &Service{store: store, bus: bus, log: log}
}

// OpenForLead ensures the lead has an open triage item. A lead has at most
// one open item: fresh activity on an already-open item is a no-op, activity
// on a closed item reopens that item instead of creating a second one.
// Returns the item id and whether a closed item was reopened.
func (s *Service) OpenForLead(ctx context.Context, tenantID, leadID uuid.UUID, reason string) (uuid.UUID, bool, error) {
	const op = "triage.OpenForLead"

	latest, err := s.store.FindLatestByLead(ctx, tenantID, leadID)
	if err != nil {
		return uuid.Nil, false, apperr.Wrap(apperr.KindInternal, "failed to look up triage item", err).WithOp(op)
	}

	if latest == nil {
		item, err := s.store.Create(ctx, tenantID, leadID, reason)
		if err != nil {
			return uuid.Nil, false, apperr.Wrap(apperr.KindInternal, "failed to open triage item", err).WithOp(op)
		}
		s.bus.Publish(ctx, events.TriageOpened{
			BaseEvent: events.NewBaseEvent(),
			ItemID:    item.ID,
			LeadID:    leadID,
			TenantID:  tenantID,
			Reason:    reason,
		})
		return item.ID, false, nil
	}

	if latest.Status != StatusClosed {
		return latest.ID, false, nil
	}

	item, err := s.store.Reopen(ctx, tenantID, latest.ID, reason)
	if err != nil {
		// Lost a race with another reopen; the item is open either way.
		if errors.Is(err, ErrNotFound) {
			return latest.ID, false, nil
		}
		return uuid.Nil, false, apperr.Wrap(apperr.KindInternal, "failed to reopen triage item", err).WithOp(op)
	}
	s.bus.Publish(ctx, events.TriageReopened{
		BaseEvent: events.NewBaseEvent(),
		ItemID:    item.ID,
		LeadID:    leadID,
		TenantID:  tenantID,
	})
	return item.ID, true, nil
}

// Claim moves a NEW item to IN_PROGRESS for the calling agent.
func (s *Service) Claim(ctx context.Context, tenantID, itemID, agentID uuid.UUID) (Item, error) {
	const op = "triage.Claim"

	item, err := s.store.Claim(ctx, tenantID, itemID, agentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Item{}, apperr.Conflict("triage item is not claimable").WithOp(op)
		}
		return Item{}, apperr.Wrap(apperr.KindInternal, "failed to claim triage item", err).WithOp(op)
	}
	return item, nil
}

// ClaimLatestForLead claims the lead's open item on behalf of the agent a
// lead was just routed to. A lead with no claimable item is a no-op: the
// assignment stands either way.
func (s *Service) ClaimLatestForLead(ctx context.Context, tenantID, leadID, agentID uuid.UUID) error {
	const op = "triage.ClaimLatestForLead"

	latest, err := s.store.FindLatestByLead(ctx, tenantID, leadID)
	if err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to look up triage item", err).WithOp(op)
	}
	if latest == nil || latest.Status != StatusNew {
		return nil
	}

	if _, err := s.store.Claim(ctx, tenantID, latest.ID, agentID); err != nil && !errors.Is(err, ErrNotFound) {
		return apperr.Wrap(apperr.KindInternal, "failed to claim triage item", err).WithOp(op)
	}
	return nil
}

// Close resolves an open item and records who closed it.
func (s *Service) Close(ctx context.Context, tenantID, itemID, closedBy uuid.UUID) (Item, error) {
	const op = "triage.Close"

	item, err := s.store.Close(ctx, tenantID, itemID, closedBy)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Item{}, apperr.Conflict("triage item is not open").WithOp(op)
		}
		return Item{}, apperr.Wrap(apperr.KindInternal, "failed to close triage item", err).WithOp(op)
	}

	s.bus.Publish(ctx, events.TriageClosed{
		BaseEvent: events.NewBaseEvent(),
		ItemID:    item.ID,
		LeadID:    item.LeadID,
		TenantID:  tenantID,
		ClosedBy:  closedBy,
	})
	return item, nil
}

// ListOpen returns the tenant's open queue, oldest first.
func (s *Service) ListOpen(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]Item, error) {
	items, err := s.store.ListOpen(ctx, tenantID, limit, offset)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list triage queue", err).WithOp("triage.ListOpen")
	}
	return items, nil
}

// SweepStale logs every unclaimed item older than the given age so slow
// queues show up in operations dashboards. Returns the number of stale items
// found.
func (s *Service) SweepStale(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	items, err := s.store.ListStaleOpen(ctx, cutoff, 0)
	if err != nil {
		return 0, apperr.Wrap(apperr.KindInternal, "failed to list stale triage items", err).WithOp("triage.SweepStale")
	}

	for _, item := range items {
		s.log.Warn("stale triage item",
			"item_id", item.ID.String(),
			"lead_id", item.LeadID.String(),
			"tenant_id", item.TenantID.String(),
			"age_hours", time.Since(item.CreatedAt).Hours(),
			"reason", item.Reason,
		)
	}
	return len(items), nil
}
