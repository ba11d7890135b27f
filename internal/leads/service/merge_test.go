package service

import (
	"context"
	"encoding/json"
	"testing"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/apperr"

	"github.com/google/uuid"
)

func seedLead(t *testing.T, store *fakeStore, tenantID uuid.UUID, params repository.CreateLeadParams) repository.Lead {
	t.Helper()
	params.TenantID = tenantID
	lead, err := store.Create(context.Background(), params)
	if err != nil {
		t.Fatalf("seed lead: %v", err)
	}
	return lead
}

func TestMergeBorrowsFieldsAndTakesMaxima(t *testing.T) {
	store := newFakeStore()
	svc, bus := newTestService(store)
	tenantID := uuid.New()

	primary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Phone: strPtr("919876543210"), Channel: domain.ChannelWhatsApp,
		Status: domain.StatusNew, Heat: domain.HeatWarm, Score: 45,
	})
	secondary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Name: strPtr("Ravi"), Email: strPtr("ravi@example.com"), Channel: domain.ChannelWebsite,
		Status: domain.StatusQualified, Heat: domain.HeatOnFire, Score: 88,
	})
	for i := 0; i < 3; i++ {
		if err := store.AppendEvent(context.Background(), repository.AppendEventParams{
			TenantID: tenantID, LeadID: secondary.ID, EventType: repository.EventLeadUpdated,
		}); err != nil {
			t.Fatalf("seed event: %v", err)
		}
	}

	resp, err := svc.Merge(context.Background(), tenantID, primary.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{secondary.ID},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}

	if resp.Primary.Name == nil || *resp.Primary.Name != "Ravi" {
		t.Fatalf("expected name borrowed, got %v", resp.Primary.Name)
	}
	if resp.Primary.Email == nil || *resp.Primary.Email != "ravi@example.com" {
		t.Fatalf("expected email borrowed, got %v", resp.Primary.Email)
	}
	if resp.Primary.Phone == nil || *resp.Primary.Phone != "+919876543210" {
		t.Fatalf("primary phone must be kept (E.164 display), got %v", resp.Primary.Phone)
	}
	if resp.Primary.Score != 88 || resp.Primary.Heat != domain.HeatOnFire {
		t.Fatalf("expected max score/heat, got %d/%s", resp.Primary.Score, resp.Primary.Heat)
	}
	if resp.EventsReowned != 3 {
		t.Fatalf("expected 3 events re-owned, got %d", resp.EventsReowned)
	}

	merged, err := store.GetByID(context.Background(), tenantID, secondary.ID)
	if err != nil {
		t.Fatalf("reload secondary: %v", err)
	}
	if merged.Status != domain.StatusMerged {
		t.Fatalf("expected secondary MERGED, got %s", merged.Status)
	}
	if merged.MergedIntoID == nil || *merged.MergedIntoID != primary.ID {
		t.Fatalf("expected merged_into to point at primary")
	}

	names := bus.names()
	if len(names) != 1 || names[0] != "leads.merged" {
		t.Fatalf("unexpected bus events %v", names)
	}

	// The trail now belongs to the primary, plus the merge entry itself.
	trail := store.eventTypes(primary.ID)
	if len(trail) != 4 || trail[3] != repository.EventLeadsMerged {
		t.Fatalf("unexpected primary trail %v", trail)
	}

	// The merge entry records which secondary supplied each borrowed field.
	var payload struct {
		SecondaryIDs []uuid.UUID          `json:"secondaryIds"`
		Fields       map[string]uuid.UUID `json:"fields"`
	}
	if err := json.Unmarshal(store.lastEventPayload(primary.ID, repository.EventLeadsMerged), &payload); err != nil {
		t.Fatalf("decode merge payload: %v", err)
	}
	if len(payload.SecondaryIDs) != 1 || payload.SecondaryIDs[0] != secondary.ID {
		t.Fatalf("unexpected secondaryIds %v", payload.SecondaryIDs)
	}
	if payload.Fields["name"] != secondary.ID || payload.Fields["email"] != secondary.ID {
		t.Fatalf("expected name and email attributed to secondary, got %v", payload.Fields)
	}
	if _, ok := payload.Fields["phone"]; ok {
		t.Fatalf("phone was not borrowed, payload %v", payload.Fields)
	}
}

func TestMergeRejectsSelfMerge(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	primary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatCold, Score: 30,
	})

	_, err := svc.Merge(context.Background(), tenantID, primary.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{primary.ID},
	})
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMergeSkipsAlreadyMergedSecondary(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	primary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatCold, Score: 30,
	})
	secondary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatHot, Score: 70,
	})

	if _, err := svc.Merge(context.Background(), tenantID, primary.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{secondary.ID},
	}); err != nil {
		t.Fatalf("first merge: %v", err)
	}

	// Retrying the same request finds nothing left to merge and is a no-op
	// success: no second merge entry, state unchanged.
	retry, err := svc.Merge(context.Background(), tenantID, primary.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{secondary.ID},
	})
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(retry.MergedIDs) != 0 || retry.EventsReowned != 0 {
		t.Fatalf("expected no-op retry, got %v / %d", retry.MergedIDs, retry.EventsReowned)
	}
	if retry.Primary.Score != 70 || retry.Primary.Heat != domain.HeatHot {
		t.Fatalf("retry changed primary state: %d/%s", retry.Primary.Score, retry.Primary.Heat)
	}

	trail := store.eventTypes(primary.ID)
	merges := 0
	for _, et := range trail {
		if et == repository.EventLeadsMerged {
			merges++
		}
	}
	if merges != 1 {
		t.Fatalf("expected a single merge entry, trail %v", trail)
	}
}

func TestMergeRejectsMergedPrimary(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	a := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatCold, Score: 30,
	})
	b := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatCold, Score: 30,
	})

	if _, err := svc.Merge(context.Background(), tenantID, a.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{b.ID},
	}); err != nil {
		t.Fatalf("setup merge: %v", err)
	}

	_, err := svc.Merge(context.Background(), tenantID, b.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{a.ID},
	})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for merged primary, got %v", err)
	}
}

func TestMergeUnknownSecondaryFails(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	primary := seedLead(t, store, tenantID, repository.CreateLeadParams{
		Channel: domain.ChannelWhatsApp, Status: domain.StatusNew, Heat: domain.HeatCold, Score: 30,
	})

	_, err := svc.Merge(context.Background(), tenantID, primary.ID, transport.MergeRequest{
		SecondaryIDs: []uuid.UUID{uuid.New()},
	})
	if !apperr.Is(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
