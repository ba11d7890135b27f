package phone

import "testing"

func TestDigits_StripsChatSuffix(t *testing.T) {
	got := Digits("919000000001@s.whatsapp.net")
	if got != "919000000001" {
		t.Fatalf("expected 919000000001, got %q", got)
	}
}

func TestDigits_RemovesFormatting(t *testing.T) {
	got := Digits("+91 90000-00001")
	if got != "919000000001" {
		t.Fatalf("expected 919000000001, got %q", got)
	}
}

func TestDigits_EmptyInput(t *testing.T) {
	if got := Digits("   "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestDigits_NoDigits(t *testing.T) {
	if got := Digits("not-a-number"); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestNormalizeE164_BareDigits(t *testing.T) {
	got := NormalizeE164("919876543210")
	if got != "+919876543210" {
		t.Fatalf("expected +919876543210, got %q", got)
	}
}

func TestNormalizeE164_FormattedInput(t *testing.T) {
	got := NormalizeE164("+91 98765 43210")
	if got != "+919876543210" {
		t.Fatalf("expected +919876543210, got %q", got)
	}
}

func TestNormalizeE164_InvalidPassesThrough(t *testing.T) {
	if got := NormalizeE164("12345"); got != "12345" {
		t.Fatalf("expected invalid input unchanged, got %q", got)
	}
	if got := NormalizeE164("  "); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}
