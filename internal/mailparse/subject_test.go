package mailparse

import (
	"strings"
	"testing"
)

func TestExtractTicketNumber(t *testing.T) {
	p := NewSubjectParser("SD", 255)

	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"plain reference", "[SD-00042] Printer broken", "SD-00042"},
		{"reply noise", "Re: Re: [SD-00042] Printer broken", "SD-00042"},
		{"lowercase", "re: sd-00042 still broken", "SD-00042"},
		{"date-based number", "Fwd: [SD-20260829-00007] VPN down", "SD-20260829-00007"},
		{"no reference", "Printer broken", ""},
		{"empty subject", "", ""},
		{"embedded mid-sentence", "question about SD-123 please", "SD-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.ExtractTicketNumber(tt.subject); got != tt.want {
				t.Errorf("ExtractTicketNumber(%q) = %q, want %q", tt.subject, got, tt.want)
			}
		})
	}
}

func TestExtractTicketNumberOtherPrefix(t *testing.T) {
	p := NewSubjectParser("HELP", 255)
	if got := p.ExtractTicketNumber("Re: [help-9] hi"); got != "HELP-9" {
		t.Errorf("got %q, want HELP-9", got)
	}
	if got := p.ExtractTicketNumber("[SD-00042] wrong prefix"); got != "" {
		t.Errorf("got %q, want empty", got)
	}
}

func TestNormalize(t *testing.T) {
	p := NewSubjectParser("SD", 255)

	tests := []struct {
		name    string
		subject string
		want    string
	}{
		{"untouched", "Printer broken", "Printer broken"},
		{"single re", "Re: Printer broken", "Printer broken"},
		{"stacked prefixes", "Re: FW: AW: Printer broken", "Printer broken"},
		{"numbered re", "RE[2]: Printer broken", "Printer broken"},
		{"german forward", "WG: Drucker kaputt", "Drucker kaputt"},
		{"empty", "", DefaultSubject},
		{"whitespace only", "   ", DefaultSubject},
		{"prefix only", "Re: ", DefaultSubject},
		{"inner re kept", "Product Re:view", "Product Re:view"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Normalize(tt.subject); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.subject, got, tt.want)
			}
		})
	}
}

func TestNormalizeTruncates(t *testing.T) {
	p := NewSubjectParser("SD", 255)
	long := strings.Repeat("ä", 300)
	got := p.Normalize(long)
	runes := []rune(got)
	if len(runes) != 255 {
		t.Fatalf("normalized length = %d runes, want 255", len(runes))
	}
	if runes[len(runes)-1] != '…' {
		t.Errorf("truncated subject does not end in ellipsis: %q", string(runes[250:]))
	}
}

func TestFormatReference(t *testing.T) {
	got := FormatReference("SD-00042", "Printer broken")
	if got != "[SD-00042] Printer broken" {
		t.Errorf("FormatReference = %q", got)
	}
}
