package ingest

import (
	"testing"

	"leadrouter_backend/internal/leads/domain"
)

func TestNormalizeWhatsApp(t *testing.T) {
	raw := []byte(`{"from":"919876543210@s.whatsapp.net","pushName":"Ravi Kumar","body":"I want to buy 500 units","id":"wamid.abc123"}`)

	event := Normalize("whatsapp", raw)

	if event.Channel != domain.ChannelWhatsApp {
		t.Fatalf("expected WHATSAPP channel, got %s", event.Channel)
	}
	if event.Lead.Phone == nil || *event.Lead.Phone != "919876543210" {
		t.Fatalf("expected phone 919876543210, got %v", event.Lead.Phone)
	}
	if event.Lead.Name == nil || *event.Lead.Name != "Ravi Kumar" {
		t.Fatalf("expected name from pushName, got %v", event.Lead.Name)
	}
	if event.Message.Body != "I want to buy 500 units" {
		t.Fatalf("unexpected body %q", event.Message.Body)
	}
	if event.Message.ExternalID == nil || *event.Message.ExternalID != "wamid.abc123" {
		t.Fatalf("expected external id from message id, got %v", event.Message.ExternalID)
	}
}

func TestNormalizeIndiaMart(t *testing.T) {
	raw := []byte(`{"SENDER_NAME":"Priya","SENDER_MOBILE":"+91-98765 43210","SENDER_EMAIL":"PRIYA@EXAMPLE.COM","QUERY_MESSAGE":"Need quotation for pumps","QUERY_ID":"QID-778"}`)

	event := Normalize("indiamart", raw)

	if event.Channel != domain.ChannelIndiaMart {
		t.Fatalf("expected INDIAMART channel, got %s", event.Channel)
	}
	if event.Lead.Phone == nil || *event.Lead.Phone != "919876543210" {
		t.Fatalf("expected digits-only phone, got %v", event.Lead.Phone)
	}
	if event.Lead.Email == nil || *event.Lead.Email != "priya@example.com" {
		t.Fatalf("expected lowercased email, got %v", event.Lead.Email)
	}
	if event.Message.ExternalID == nil || *event.Message.ExternalID != "QID-778" {
		t.Fatalf("expected query id as external id, got %v", event.Message.ExternalID)
	}
	if event.TriageReason != "marketplace lead" {
		t.Fatalf("unexpected triage reason %q", event.TriageReason)
	}
}

func TestNormalizeJustDialNumericLeadID(t *testing.T) {
	raw := []byte(`{"name":"Amit","mobile":"9812345678","leadid":445566,"comments":"price for 20 units"}`)

	event := Normalize("justdial", raw)

	if event.Channel != domain.ChannelJustDial {
		t.Fatalf("expected JUSTDIAL channel, got %s", event.Channel)
	}
	if event.Message.ExternalID == nil || *event.Message.ExternalID != "445566" {
		t.Fatalf("expected numeric lead id stringified, got %v", event.Message.ExternalID)
	}
	if event.Message.Body != "price for 20 units" {
		t.Fatalf("unexpected body %q", event.Message.Body)
	}
}

func TestNormalizeGenericNestedShape(t *testing.T) {
	raw := []byte(`{"channel":"website","lead":{"name":"Sana","email":"sana@example.com"},"message":{"body":"hello","externalId":"form-9"}}`)

	event := Normalize("", raw)

	if event.Source != SourceGeneric {
		t.Fatalf("expected generic source, got %q", event.Source)
	}
	if event.Channel != domain.ChannelWebsite {
		t.Fatalf("expected explicit channel to win, got %s", event.Channel)
	}
	if event.Lead.Email == nil || *event.Lead.Email != "sana@example.com" {
		t.Fatalf("expected nested lead email, got %v", event.Lead.Email)
	}
	if event.Message.ExternalID == nil || *event.Message.ExternalID != "form-9" {
		t.Fatalf("expected nested message external id, got %v", event.Message.ExternalID)
	}
}

func TestNormalizeInvalidEmailDropped(t *testing.T) {
	raw := []byte(`{"name":"X","email":"not-an-email","message":"hi"}`)

	event := Normalize("website", raw)

	if event.Lead.Email != nil {
		t.Fatalf("expected invalid email to be dropped, got %v", event.Lead.Email)
	}
}

func TestNormalizeMalformedPayload(t *testing.T) {
	raw := []byte(`{"broken`)

	event := Normalize("indiamart", raw)

	if event.Channel != domain.ChannelIndiaMart {
		t.Fatalf("expected source default channel, got %s", event.Channel)
	}
	if event.Lead.Name != nil || event.Lead.Phone != nil || event.Lead.Email != nil {
		t.Fatalf("expected empty lead fields on malformed payload")
	}
	if string(event.Message.RawPayload) != string(raw) {
		t.Fatalf("expected raw payload preserved")
	}
	if event.TriageReason != "unparseable payload" {
		t.Fatalf("unexpected triage reason %q", event.TriageReason)
	}
}

func TestNormalizeEmailSubjectPrepended(t *testing.T) {
	raw := []byte(`{"from":"buyer@example.com","subject":"Bulk order enquiry","body":"Need 200 units urgently","message_id":"<m1@mail>"}`)

	event := Normalize("email", raw)

	if event.Channel != domain.ChannelEmail {
		t.Fatalf("expected EMAIL channel, got %s", event.Channel)
	}
	if event.Message.Body != "Bulk order enquiry\n\nNeed 200 units urgently" {
		t.Fatalf("unexpected body %q", event.Message.Body)
	}
	if event.Lead.Email == nil || *event.Lead.Email != "buyer@example.com" {
		t.Fatalf("expected sender email, got %v", event.Lead.Email)
	}
}
