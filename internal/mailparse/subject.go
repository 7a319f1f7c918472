// Package mailparse contains the pure parsing helpers used by inbound email
// processing: ticket-number detection in subject lines, reply/forward prefix
// normalization, and quoted-reply extraction from raw bodies. Nothing here
// performs I/O.
package mailparse

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSubject is stored when a subject is empty after prefix stripping.
const DefaultSubject = "(no subject)"

// Ellipsis terminates subjects truncated to the maximum length.
const Ellipsis = "…"

// replyPrefixPattern matches one leading reply/forward marker, e.g. "Re:",
// "RE[2]:", "Fwd:", "FW:", "AW:", "WG:".
var replyPrefixPattern = regexp.MustCompile(`(?i)^\s*(re|fwd|fw|aw|wg)(\[\d+\])?\s*:\s*`)

// SubjectParser extracts ticket references from subject lines and normalizes
// subjects for storage.
type SubjectParser struct {
	pattern *regexp.Regexp
	maxLen  int
}

// NewSubjectParser builds a parser for ticket numbers carrying the given
// prefix, e.g. "SD" for numbers like SD-00042 or SD-20260829-00042.
func NewSubjectParser(prefix string, maxLen int) *SubjectParser {
	if maxLen <= 0 {
		maxLen = 255
	}
	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `-\d+(?:-\d+)?`)
	return &SubjectParser{pattern: pattern, maxLen: maxLen}
}

// ExtractTicketNumber scans subject for an embedded ticket number, tolerating
// arbitrary casing, whitespace, and surrounding "Re:"/"Fwd:" noise. Returns ""
// when no reference is present.
func (p *SubjectParser) ExtractTicketNumber(subject string) string {
	match := p.pattern.FindString(subject)
	if match == "" {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(match))
}

// Normalize strips leading reply/forward prefixes, substitutes the default
// subject when nothing remains, and truncates to the maximum length ending in
// an ellipsis marker.
func (p *SubjectParser) Normalize(subject string) string {
	s := strings.TrimSpace(subject)
	for {
		stripped := replyPrefixPattern.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = strings.TrimSpace(stripped)
	}
	if s == "" {
		return DefaultSubject
	}
	runes := []rune(s)
	if len(runes) > p.maxLen {
		s = string(runes[:p.maxLen-1]) + Ellipsis
	}
	return s
}

// FormatReference renders the bracketed reference used in outbound subject
// lines so customer replies thread back to the ticket.
func FormatReference(ticketNumber, subject string) string {
	return fmt.Sprintf("[%s] %s", ticketNumber, subject)
}
