package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/repository"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/events"
	"leadrouter_backend/platform/logger"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store with the same lookup semantics as the
// Postgres repository: merged leads are excluded from identity resolution
// and lookups return the oldest match first.
type fakeStore struct {
	mu       sync.Mutex
	leads    []repository.Lead
	messages []repository.Message
	events   []repository.LeadEvent

	failCreateMessage bool
	failAppendEvent   bool
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) Create(_ context.Context, params repository.CreateLeadParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	lead := repository.Lead{
		ID:             uuid.New(),
		TenantID:       params.TenantID,
		Name:           params.Name,
		Phone:          params.Phone,
		Email:          params.Email,
		Channel:        params.Channel,
		Status:         params.Status,
		Heat:           params.Heat,
		Score:          params.Score,
		Source:         params.Source,
		CreatedAt:      now,
		UpdatedAt:      now,
		LastActivityAt: now,
	}
	f.leads = append(f.leads, lead)
	return lead, nil
}

func (f *fakeStore) GetByID(_ context.Context, tenantID, leadID uuid.UUID) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.ID == leadID {
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) FindByPhone(_ context.Context, tenantID uuid.UUID, phone string) (*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.Status != domain.StatusMerged && lead.Phone != nil && *lead.Phone == phone {
			found := lead
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, tenantID uuid.UUID, email string) (*repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.Status != domain.StatusMerged && lead.Email != nil && *lead.Email == email {
			found := lead
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) UpdateFromInbound(_ context.Context, params repository.UpdateFromInboundParams) (repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, lead := range f.leads {
		if lead.TenantID == params.TenantID && lead.ID == params.LeadID {
			lead.Name = params.Name
			lead.Phone = params.Phone
			lead.Email = params.Email
			lead.Status = params.Status
			lead.Heat = params.Heat
			lead.Score = params.Score
			lead.UpdatedAt = time.Now()
			lead.LastActivityAt = lead.UpdatedAt
			f.leads[i] = lead
			return lead, nil
		}
	}
	return repository.Lead{}, repository.ErrNotFound
}

func (f *fakeStore) ApplyMerge(_ context.Context, tenantID, leadID uuid.UUID, name, phone, email *string, score int, heat domain.Heat) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, lead := range f.leads {
		if lead.TenantID == tenantID && lead.ID == leadID {
			lead.Name, lead.Phone, lead.Email = name, phone, email
			lead.Score, lead.Heat = score, heat
			f.leads[i] = lead
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) MarkMerged(_ context.Context, tenantID, leadID, primaryID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, lead := range f.leads {
		if lead.TenantID == tenantID && lead.ID == leadID {
			lead.Status = domain.StatusMerged
			lead.MergedIntoID = &primaryID
			f.leads[i] = lead
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) List(_ context.Context, tenantID uuid.UUID, _, _ int) ([]repository.Lead, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Lead
	for _, lead := range f.leads {
		if lead.TenantID == tenantID && lead.Status != domain.StatusMerged {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateMessage(_ context.Context, params repository.CreateMessageParams) (repository.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateMessage {
		return repository.Message{}, errors.New("message insert failed")
	}
	msg := repository.Message{
		ID:         uuid.New(),
		TenantID:   params.TenantID,
		LeadID:     params.LeadID,
		Direction:  params.Direction,
		Channel:    params.Channel,
		Body:       params.Body,
		ExternalID: params.ExternalID,
		RawPayload: params.RawPayload,
		CreatedAt:  time.Now(),
	}
	f.messages = append(f.messages, msg)
	return msg, nil
}

func (f *fakeStore) FindMessageByExternalID(_ context.Context, tenantID uuid.UUID, channel domain.Channel, externalID string) (*repository.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range f.messages {
		if msg.TenantID == tenantID && msg.Channel == channel && msg.ExternalID != nil && *msg.ExternalID == externalID {
			found := msg
			return &found, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ListMessagesByLead(_ context.Context, tenantID, leadID uuid.UUID, _ int) ([]repository.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Message
	for _, msg := range f.messages {
		if msg.TenantID == tenantID && msg.LeadID == leadID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (f *fakeStore) AppendEvent(_ context.Context, params repository.AppendEventParams) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAppendEvent {
		return errors.New("event insert failed")
	}
	payload := []byte("{}")
	if params.Payload != nil {
		data, err := json.Marshal(params.Payload)
		if err != nil {
			return err
		}
		payload = data
	}
	f.events = append(f.events, repository.LeadEvent{
		ID:        uuid.New(),
		TenantID:  params.TenantID,
		LeadID:    params.LeadID,
		EventType: params.EventType,
		Payload:   payload,
		CreatedAt: time.Now(),
	})
	return nil
}

func (f *fakeStore) ReassignEvents(_ context.Context, tenantID, fromLeadID, toLeadID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var moved int64
	for i, ev := range f.events {
		if ev.TenantID == tenantID && ev.LeadID == fromLeadID {
			f.events[i].LeadID = toLeadID
			moved++
		}
	}
	return moved, nil
}

func (f *fakeStore) ListEventsByLead(_ context.Context, tenantID, leadID uuid.UUID) ([]repository.LeadEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.LeadEvent
	for _, ev := range f.events {
		if ev.TenantID == tenantID && ev.LeadID == leadID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) lastEventPayload(leadID uuid.UUID, eventType string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	var payload []byte
	for _, ev := range f.events {
		if ev.LeadID == leadID && ev.EventType == eventType {
			payload = ev.Payload
		}
	}
	return payload
}

func (f *fakeStore) eventTypes(leadID uuid.UUID) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var types []string
	for _, ev := range f.events {
		if ev.LeadID == leadID {
			types = append(types, ev.EventType)
		}
	}
	return types
}

// fakeBus records published events synchronously.
type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (b *fakeBus) Publish(_ context.Context, event events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, event)
}

func (b *fakeBus) PublishSync(ctx context.Context, event events.Event) error {
	b.Publish(ctx, event)
	return nil
}

func (b *fakeBus) Subscribe(string, events.Handler) {}

func (b *fakeBus) names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for _, ev := range b.published {
		names = append(names, ev.EventName())
	}
	return names
}

type fakeTriage struct {
	calls   int
	reasons []string
}

func (f *fakeTriage) OpenForLead(_ context.Context, _, _ uuid.UUID, reason string) (uuid.UUID, bool, error) {
	f.calls++
	f.reasons = append(f.reasons, reason)
	return uuid.New(), false, nil
}

func newTestService(store *fakeStore) (*Service, *fakeBus) {
	bus := &fakeBus{}
	svc := NewService(store, bus, logger.New("development"))
	return svc, bus
}

func strPtr(s string) *string { return &s }

func inboundEvent(phone, body, externalID string) transport.InboundEvent {
	event := transport.InboundEvent{
		Source:  "whatsapp",
		Channel: domain.ChannelWhatsApp,
		Message: transport.MessageFields{Body: body},
	}
	if phone != "" {
		event.Lead.Phone = strPtr(phone)
	}
	if externalID != "" {
		event.Message.ExternalID = strPtr(externalID)
	}
	return event
}

func TestProcessInboundCreatesQualifiedLead(t *testing.T) {
	store := newFakeStore()
	svc, bus := newTestService(store)
	triage := &fakeTriage{}
	svc.SetTriageOpener(triage)
	tenantID := uuid.New()

	resp, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "I want to buy 500 units urgently, bulk order", "m-1"))
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}

	if !resp.IsNew {
		t.Fatalf("expected a new lead")
	}
	if resp.Lead.Status != domain.StatusQualified {
		t.Fatalf("expected QUALIFIED, got %s", resp.Lead.Status)
	}
	if resp.Lead.Heat != domain.HeatOnFire {
		t.Fatalf("expected ON_FIRE, got %s", resp.Lead.Heat)
	}
	if resp.Message == nil {
		t.Fatalf("expected message to be persisted")
	}
	if triage.calls != 1 {
		t.Fatalf("expected triage opened once, got %d", triage.calls)
	}

	types := store.eventTypes(resp.Lead.ID)
	if len(types) != 1 || types[0] != repository.EventLeadCreated {
		t.Fatalf("expected LEAD_CREATED audit entry, got %v", types)
	}
	names := bus.names()
	if len(names) != 2 || names[0] != "leads.created" || names[1] != "leads.qualified" {
		t.Fatalf("unexpected bus events %v", names)
	}
}

func TestProcessInboundIdempotentByExternalID(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	first, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "price please", "dup-1"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "price please", "dup-1"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if !second.AlreadySeen {
		t.Fatalf("expected retry to be recognized")
	}
	if second.Lead.ID != first.Lead.ID {
		t.Fatalf("retry resolved a different lead")
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected a single stored message, got %d", len(store.messages))
	}
	if len(store.leads) != 1 {
		t.Fatalf("expected a single lead, got %d", len(store.leads))
	}
}

func TestProcessInboundDeduplicatesByPhone(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	first, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "hello", "m-1"))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "what is the price and cost? can you quote?", "m-2"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if second.IsNew {
		t.Fatalf("expected second event to update the existing lead")
	}
	if second.Lead.ID != first.Lead.ID {
		t.Fatalf("expected same lead, got %s and %s", first.Lead.ID, second.Lead.ID)
	}
	if len(store.leads) != 1 {
		t.Fatalf("expected one lead, got %d", len(store.leads))
	}
	if len(store.messages) != 2 {
		t.Fatalf("expected both messages stored, got %d", len(store.messages))
	}
}

func TestProcessInboundHeatAndScoreNeverDrop(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	hot, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "I want to buy 500 units urgently, bulk order", "m-1"))
	if err != nil {
		t.Fatalf("hot: %v", err)
	}
	cold, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "ok", "m-2"))
	if err != nil {
		t.Fatalf("cold: %v", err)
	}

	if cold.Lead.Heat != hot.Lead.Heat {
		t.Fatalf("heat dropped from %s to %s", hot.Lead.Heat, cold.Lead.Heat)
	}
	if cold.Lead.Score < hot.Lead.Score {
		t.Fatalf("score dropped from %d to %d", hot.Lead.Score, cold.Lead.Score)
	}
}

func TestProcessInboundBackfillsOnlyMissingFields(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	first := inboundEvent("919876543210", "hello", "m-1")
	first.Lead.Name = strPtr("Ravi")
	if _, err := svc.ProcessInbound(context.Background(), tenantID, first); err != nil {
		t.Fatalf("first: %v", err)
	}

	second := inboundEvent("919876543210", "hello again", "m-2")
	second.Lead.Name = strPtr("R. Kumar")
	second.Lead.Email = strPtr("ravi@example.com")
	resp, err := svc.ProcessInbound(context.Background(), tenantID, second)
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if resp.Lead.Name == nil || *resp.Lead.Name != "Ravi" {
		t.Fatalf("existing name was overwritten: %v", resp.Lead.Name)
	}
	if resp.Lead.Email == nil || *resp.Lead.Email != "ravi@example.com" {
		t.Fatalf("missing email was not backfilled: %v", resp.Lead.Email)
	}
}

func TestProcessInboundSurvivesMessageInsertFailure(t *testing.T) {
	store := newFakeStore()
	store.failCreateMessage = true
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	resp, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "hello", "m-1"))
	if err != nil {
		t.Fatalf("expected lead write to survive message failure, got %v", err)
	}
	if resp.Message != nil {
		t.Fatalf("expected no message in response")
	}
	if len(store.leads) != 1 {
		t.Fatalf("expected lead to exist, got %d", len(store.leads))
	}
}

func TestProcessInboundFormatsPhoneForDisplay(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	tenantID := uuid.New()

	resp, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "hello", "m-1"))
	if err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}

	if resp.Lead.Phone == nil || *resp.Lead.Phone != "+919876543210" {
		t.Fatalf("expected E.164 display phone, got %v", resp.Lead.Phone)
	}
	// The stored value stays a bare digit string so dedup keys never change.
	if store.leads[0].Phone == nil || *store.leads[0].Phone != "919876543210" {
		t.Fatalf("stored phone must stay a digit string, got %v", store.leads[0].Phone)
	}

	second, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "hello again", "m-2"))
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if second.IsNew || second.Lead.ID != resp.Lead.ID {
		t.Fatalf("display formatting must not break phone dedup")
	}
}

func TestProcessInboundUsesHeatBasedTriageReason(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store)
	triage := &fakeTriage{}
	svc.SetTriageOpener(triage)
	tenantID := uuid.New()

	if _, err := svc.ProcessInbound(context.Background(), tenantID, inboundEvent("919876543210", "I want to buy now, send quote and price", "m-1")); err != nil {
		t.Fatalf("ProcessInbound: %v", err)
	}

	if len(triage.reasons) != 1 || triage.reasons[0] != "hot inbound lead" {
		t.Fatalf("unexpected triage reasons %v", triage.reasons)
	}
}
