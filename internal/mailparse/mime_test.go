package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRawPlainText(t *testing.T) {
	raw := strings.Join([]string{
		"Message-Id: <abc123@mail.example.com>",
		"From: Jane Doe <jane@example.com>",
		"Subject: Printer broken",
		"Date: Mon, 03 Aug 2026 10:12:00 +0000",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"The printer on floor 3 is broken.",
		"",
	}, "\r\n")

	parsed, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "abc123@mail.example.com", parsed.MessageID)
	assert.Equal(t, "jane@example.com", parsed.FromEmail)
	assert.Equal(t, "Jane Doe", parsed.FromName)
	assert.Equal(t, "Printer broken", parsed.Subject)
	assert.Contains(t, parsed.TextBody, "printer on floor 3")
	assert.Equal(t, int64(len(raw)), parsed.RawSize)
}

func TestParseRawMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"Message-Id: <multi@mail.example.com>",
		"From: jane@example.com",
		"Subject: Mixed",
		"MIME-Version: 1.0",
		`Content-Type: multipart/alternative; boundary="BOUNDARY"`,
		"",
		"--BOUNDARY",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"plain body",
		"--BOUNDARY",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>html body</p>",
		"--BOUNDARY--",
		"",
	}, "\r\n")

	parsed, err := ParseRaw([]byte(raw))
	require.NoError(t, err)
	assert.Contains(t, parsed.TextBody, "plain body")
	assert.Contains(t, parsed.HTMLBody, "html body")
}

func TestParseRawEmpty(t *testing.T) {
	_, err := ParseRaw(nil)
	assert.Error(t, err)
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@x", normalizeMessageID(" <abc@x> "))
	assert.Equal(t, "abc@x", normalizeMessageID("abc@x"))
	assert.Equal(t, "", normalizeMessageID(""))
}
