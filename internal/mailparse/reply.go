package mailparse

import (
	"regexp"
	"strings"
)

var (
	// "On Mon, 3 Aug 2026 at 10:12, Jane Doe <jane@example.com> wrote:"
	attributionPattern = regexp.MustCompile(`(?i)^on .{0,200}wrote:\s*$`)
	// Outlook-style forwarded/original message separators.
	originalMessagePattern = regexp.MustCompile(`(?i)^-{2,}\s*(original|forwarded)\s+message\s*-{2,}`)
	underscoreRulePattern  = regexp.MustCompile(`^_{10,}\s*$`)
)

// ExtractReplyContent returns the newly authored portion of a raw email body
// by stripping quoted lines, attribution boilerplate, and a trailing
// signature block. Best-effort: when no quoting is detected the input is
// returned unchanged apart from trimming.
func ExtractReplyContent(raw string) string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")

	var kept []string
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, ">") {
			// First quoted line ends the authored portion; an immediately
			// preceding attribution line is dropped with it.
			if n := len(kept); n > 0 && attributionPattern.MatchString(strings.TrimSpace(kept[n-1])) {
				kept = kept[:n-1]
			}
			break
		}
		if attributionPattern.MatchString(trimmed) {
			break
		}
		if originalMessagePattern.MatchString(trimmed) || underscoreRulePattern.MatchString(trimmed) {
			break
		}
		kept = append(kept, line)
	}

	kept = stripSignature(kept)
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// stripSignature removes a trailing "-- " delimited signature block.
func stripSignature(lines []string) []string {
	for i, line := range lines {
		if strings.TrimRight(line, " ") == "--" {
			return lines[:i]
		}
	}
	return lines
}
