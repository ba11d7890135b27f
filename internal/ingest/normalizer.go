// Package ingest provides the inbound capture surface: payload normalization
// for every supported channel plus the HTTP endpoints that receive them.
package ingest

import (
	"encoding/json"
	"regexp"
	"strings"

	"leadrouter_backend/internal/leads/domain"
	"leadrouter_backend/internal/leads/transport"
	"leadrouter_backend/platform/phone"
)

// Known source tags. Anything else falls through to the generic mapper.
const (
	SourceWhatsApp  = "whatsapp"
	SourceIndiaMart = "indiamart"
	SourceJustDial  = "justdial"
	SourceWebsite   = "website"
	SourceEmail     = "email"
	SourceGeneric   = "generic"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// Normalize reduces a provider-specific payload to the canonical inbound
// event shape. It is total: malformed or unparseable input produces an event
// with an all-empty lead and the raw payload preserved on the message so the
// record can still be triaged by hand.
func Normalize(source string, raw []byte) transport.InboundEvent {
	source = strings.ToLower(strings.TrimSpace(source))

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil || payload == nil {
		return transport.InboundEvent{
			Source:       source,
			Channel:      defaultChannel(source),
			Message:      transport.MessageFields{RawPayload: raw},
			TriageReason: "unparseable payload",
		}
	}

	fields := flatten(payload)

	var event transport.InboundEvent
	switch source {
	case SourceWhatsApp:
		event = mapWhatsApp(fields)
	case SourceIndiaMart:
		event = mapIndiaMart(fields)
	case SourceJustDial:
		event = mapJustDial(fields)
	case SourceWebsite:
		event = mapWebsite(fields)
	case SourceEmail:
		event = mapEmail(fields)
	default:
		event = mapGeneric(fields)
	}

	event.Source = source
	if event.Source == "" {
		event.Source = SourceGeneric
	}
	event.Message.RawPayload = raw
	return event
}

func mapWhatsApp(fields map[string]any) transport.InboundEvent {
	return transport.InboundEvent{
		Channel: domain.ChannelWhatsApp,
		Lead: transport.ContactFields{
			Name:  nameField(fields, "pushname", "sendername", "name"),
			Phone: phoneField(fields, "from", "sender", "waid", "phone"),
		},
		Message: transport.MessageFields{
			Body:       stringValue(fields, "body", "text", "message"),
			ExternalID: idField(fields, "messageid", "id"),
		},
	}
}

func mapIndiaMart(fields map[string]any) transport.InboundEvent {
	return transport.InboundEvent{
		Channel: domain.ChannelIndiaMart,
		Lead: transport.ContactFields{
			Name:  nameField(fields, "sender_name", "name"),
			Phone: phoneField(fields, "sender_mobile", "mobile"),
			Email: emailField(fields, "sender_email", "email"),
		},
		Message: transport.MessageFields{
			Body:       stringValue(fields, "query_message", "enq_message", "message"),
			ExternalID: idField(fields, "query_id", "unique_query_id"),
		},
		TriageReason: "marketplace lead",
	}
}

func mapJustDial(fields map[string]any) transport.InboundEvent {
	return transport.InboundEvent{
		Channel: domain.ChannelJustDial,
		Lead: transport.ContactFields{
			Name:  nameField(fields, "name"),
			Phone: phoneField(fields, "mobile", "phone"),
			Email: emailField(fields, "email"),
		},
		Message: transport.MessageFields{
			Body:       stringValue(fields, "comments", "message"),
			ExternalID: idField(fields, "lead_id", "leadid"),
		},
		TriageReason: "marketplace lead",
	}
}

func mapWebsite(fields map[string]any) transport.InboundEvent {
	return transport.InboundEvent{
		Channel: domain.ChannelWebsite,
		Lead: transport.ContactFields{
			Name:  nameField(fields, "name", "fullname", "full_name"),
			Phone: phoneField(fields, "phone", "mobile", "tel"),
			Email: emailField(fields, "email"),
		},
		Message: transport.MessageFields{
			Body:       stringValue(fields, "message", "body", "enquiry", "comments"),
			ExternalID: idField(fields, "external_id", "externalid", "submission_id"),
		},
		TriageReason: "website form",
	}
}

func mapEmail(fields map[string]any) transport.InboundEvent {
	body := stringValue(fields, "body", "text")
	if subject := stringValue(fields, "subject"); subject != "" {
		if body != "" {
			body = subject + "\n\n" + body
		} else {
			body = subject
		}
	}

	return transport.InboundEvent{
		Channel: domain.ChannelEmail,
		Lead: transport.ContactFields{
			Name:  nameField(fields, "from_name", "fromname", "name"),
			Email: emailField(fields, "from_email", "fromemail", "from", "email"),
		},
		Message: transport.MessageFields{
			Body:       body,
			ExternalID: idField(fields, "message_id", "messageid"),
		},
		TriageReason: "inbound email",
	}
}

// mapGeneric trusts an explicit channel field and accepts either the nested
// canonical body shape ({lead:{...}, message:{...}}) or flat keys.
func mapGeneric(fields map[string]any) transport.InboundEvent {
	channel := domain.Channel(strings.ToUpper(stringValue(fields, "channel")))
	if !channel.IsValid() {
		channel = domain.ChannelWhatsApp
	}

	leadFields := fields
	if nested, ok := fields["lead"].(map[string]any); ok {
		leadFields = flatten(nested)
	}
	messageFields := fields
	if nested, ok := fields["message"].(map[string]any); ok {
		messageFields = flatten(nested)
	}

	return transport.InboundEvent{
		Channel: channel,
		Lead: transport.ContactFields{
			Name:  nameField(leadFields, "name"),
			Phone: phoneField(leadFields, "phone", "mobile"),
			Email: emailField(leadFields, "email"),
		},
		Message: transport.MessageFields{
			Body:       stringValue(messageFields, "body", "text", "message"),
			ExternalID: idField(messageFields, "externalid", "external_id", "id"),
		},
		TriageReason: stringValue(fields, "triagereason", "triage_reason"),
	}
}

func defaultChannel(source string) domain.Channel {
	switch source {
	case SourceIndiaMart:
		return domain.ChannelIndiaMart
	case SourceJustDial:
		return domain.ChannelJustDial
	case SourceWebsite:
		return domain.ChannelWebsite
	case SourceEmail:
		return domain.ChannelEmail
	default:
		return domain.ChannelWhatsApp
	}
}

// flatten lower-cases the payload's top-level keys for case-insensitive
// lookup. Values are kept as-is; nested maps stay nested.
func flatten(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		out[strings.ToLower(strings.TrimSpace(key))] = value
	}
	return out
}

// stringValue returns the first non-empty string among the given keys.
// Numeric values (common for provider ids) are accepted and formatted.
func stringValue(fields map[string]any, keys ...string) string {
	for _, key := range keys {
		switch v := fields[key].(type) {
		case string:
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return trimmed
			}
		case float64:
			return strings.TrimSuffix(strings.TrimSuffix(jsonNumber(v), ".0"), ".")
		}
	}
	return ""
}

func jsonNumber(v float64) string {
	data, _ := json.Marshal(v)
	return string(data)
}

func nameField(fields map[string]any, keys ...string) *string {
	if value := stringValue(fields, keys...); value != "" {
		return &value
	}
	return nil
}

func phoneField(fields map[string]any, keys ...string) *string {
	raw := stringValue(fields, keys...)
	if raw == "" {
		return nil
	}
	digits := phone.Digits(raw)
	if digits == "" {
		return nil
	}
	return &digits
}

func emailField(fields map[string]any, keys ...string) *string {
	value := strings.ToLower(stringValue(fields, keys...))
	if value == "" || !emailRegex.MatchString(value) {
		return nil
	}
	return &value
}

func idField(fields map[string]any, keys ...string) *string {
	if value := stringValue(fields, keys...); value != "" {
		return &value
	}
	return nil
}
