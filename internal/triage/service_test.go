package triage

import (
	"context"
	"sync"
	"testing"
	"time"

	"leadrouter_backend/platform/apperr"
	"leadrouter_backend/platform/events"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeStore struct {
	mu    sync.Mutex
	items []Item
}

func (f *fakeStore) FindLatestByLead(_ context.Context, tenantID, leadID uuid.UUID) (*Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *Item
	for i := range f.items {
		item := f.items[i]
		if item.TenantID == tenantID && item.LeadID == leadID {
			if latest == nil || item.CreatedAt.After(latest.CreatedAt) {
				found := item
				latest = &found
			}
		}
	}
	return latest, nil
}

func (f *fakeStore) Create(_ context.Context, tenantID, leadID uuid.UUID, reason string) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	item := Item{
		ID:        uuid.New(),
		TenantID:  tenantID,
		LeadID:    leadID,
		Status:    StatusNew,
		Reason:    reason,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.items = append(f.items, item)
	return item, nil
}

func (f *fakeStore) Reopen(_ context.Context, tenantID, itemID uuid.UUID, reason string) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.TenantID == tenantID && item.ID == itemID && item.Status == StatusClosed {
			item.Status = StatusNew
			item.Reason = reason
			item.ClaimedBy = nil
			item.ClosedBy = nil
			item.ClosedAt = nil
			item.UpdatedAt = time.Now()
			f.items[i] = item
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) Claim(_ context.Context, tenantID, itemID, agentID uuid.UUID) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.TenantID == tenantID && item.ID == itemID && item.Status == StatusNew {
			item.Status = StatusInProgress
			item.ClaimedBy = &agentID
			item.UpdatedAt = time.Now()
			f.items[i] = item
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) Close(_ context.Context, tenantID, itemID, closedBy uuid.UUID) (Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, item := range f.items {
		if item.TenantID == tenantID && item.ID == itemID && item.Status != StatusClosed {
			now := time.Now()
			item.Status = StatusClosed
			item.ClosedBy = &closedBy
			item.ClosedAt = &now
			item.UpdatedAt = now
			f.items[i] = item
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (f *fakeStore) ListOpen(_ context.Context, tenantID uuid.UUID, _, _ int) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Item
	for _, item := range f.items {
		if item.TenantID == tenantID && item.Status != StatusClosed {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeStore) ListStaleOpen(_ context.Context, cutoff time.Time, _ int) ([]Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Item
	for _, item := range f.items {
		if item.Status == StatusNew && item.CreatedAt.Before(cutoff) {
			out = append(out, item)
		}
	}
	return out, nil
}

type noopBus struct{}

func (noopBus) Publish(context.Context, events.Event)          {}
func (noopBus) PublishSync(context.Context, events.Event) error { return nil }
func (noopBus) Subscribe(string, events.Handler)               {}

func newTestService() (*Service, *fakeStore) {
	store := &fakeStore{}
	return NewService(store, noopBus{}, logger.New("development")), store
}

func TestOpenForLeadCreatesOnce(t *testing.T) {
	svc, store := newTestService()
	tenantID, leadID := uuid.New(), uuid.New()

	first, reopened, err := svc.OpenForLead(context.Background(), tenantID, leadID, "hot inbound lead")
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if reopened {
		t.Fatalf("fresh lead should not reopen")
	}

	second, reopened, err := svc.OpenForLead(context.Background(), tenantID, leadID, "more activity")
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	if reopened {
		t.Fatalf("open item should not be reopened")
	}
	if second != first {
		t.Fatalf("expected the existing open item to be returned")
	}
	if len(store.items) != 1 {
		t.Fatalf("expected one item, got %d", len(store.items))
	}
}

func TestOpenForLeadReopensClosedItem(t *testing.T) {
	svc, store := newTestService()
	tenantID, leadID, agentID := uuid.New(), uuid.New(), uuid.New()

	itemID, _, err := svc.OpenForLead(context.Background(), tenantID, leadID, "new inbound activity")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Close(context.Background(), tenantID, itemID, agentID); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopenedID, reopened, err := svc.OpenForLead(context.Background(), tenantID, leadID, "lead replied")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if !reopened {
		t.Fatalf("expected a reopen")
	}
	if reopenedID != itemID {
		t.Fatalf("reopen must reuse the closed item, not create a second one")
	}
	if len(store.items) != 1 {
		t.Fatalf("expected one item, got %d", len(store.items))
	}

	item := store.items[0]
	if item.Status != StatusNew || item.ClaimedBy != nil || item.ClosedAt != nil {
		t.Fatalf("reopened item not reset: %+v", item)
	}
}

func TestClaimLifecycle(t *testing.T) {
	svc, _ := newTestService()
	tenantID, leadID, agentID := uuid.New(), uuid.New(), uuid.New()

	itemID, _, err := svc.OpenForLead(context.Background(), tenantID, leadID, "x")
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	item, err := svc.Claim(context.Background(), tenantID, itemID, agentID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if item.Status != StatusInProgress || item.ClaimedBy == nil || *item.ClaimedBy != agentID {
		t.Fatalf("unexpected claimed item %+v", item)
	}

	// A second claim must fail; the item is no longer NEW.
	if _, err := svc.Claim(context.Background(), tenantID, itemID, uuid.New()); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double claim, got %v", err)
	}
}

func TestCloseClosedItemConflicts(t *testing.T) {
	svc, _ := newTestService()
	tenantID, leadID, agentID := uuid.New(), uuid.New(), uuid.New()

	itemID, _, err := svc.OpenForLead(context.Background(), tenantID, leadID, "x")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := svc.Close(context.Background(), tenantID, itemID, agentID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.Close(context.Background(), tenantID, itemID, agentID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double close, got %v", err)
	}
}

func TestSweepStaleCountsOldNewItems(t *testing.T) {
	svc, store := newTestService()
	tenantID := uuid.New()

	if _, _, err := svc.OpenForLead(context.Background(), tenantID, uuid.New(), "fresh"); err != nil {
		t.Fatalf("open: %v", err)
	}
	stale := Item{
		ID: uuid.New(), TenantID: tenantID, LeadID: uuid.New(),
		Status: StatusNew, Reason: "old", CreatedAt: time.Now().Add(-48 * time.Hour),
	}
	store.items = append(store.items, stale)

	count, err := svc.SweepStale(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stale item, got %d", count)
	}
}
