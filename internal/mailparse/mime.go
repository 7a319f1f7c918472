package mailparse

import (
	"bytes"
	"errors"
	"io"
	"mime"
	stdmail "net/mail"
	"strings"
	"time"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	htmlcharset "golang.org/x/net/html/charset"
)

func init() {
	gomessage.CharsetReader = func(charset string, input io.Reader) (io.Reader, error) {
		return htmlcharset.NewReaderLabel(charset, input)
	}
}

const maxBodyBytes = 128 * 1024

// ParsedEmail is the provider-neutral shape inbound processing consumes,
// whether it arrived as structured JSON or as a raw RFC 822 message.
type ParsedEmail struct {
	MessageID string
	FromEmail string
	FromName  string
	Subject   string
	TextBody  string
	HTMLBody  string
	Date      time.Time
	RawSize   int64
}

// ParseRaw decodes a raw RFC 822 message into a ParsedEmail. MIME multipart
// messages yield the first text/plain inline part as TextBody and the first
// text/html part as HTMLBody. Decoding is best-effort; a malformed message
// degrades to the legacy net/mail parser rather than failing.
func ParseRaw(raw []byte) (*ParsedEmail, error) {
	if len(raw) == 0 {
		return nil, errors.New("mailparse: empty message")
	}
	parsed := &ParsedEmail{RawSize: int64(len(raw))}

	reader, err := gomail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return legacyParse(raw)
	}
	if subject, err := reader.Header.Subject(); err == nil {
		parsed.Subject = subject
	}
	if list, err := reader.Header.AddressList("From"); err == nil && len(list) > 0 {
		parsed.FromEmail = strings.TrimSpace(list[0].Address)
		parsed.FromName = strings.TrimSpace(list[0].Name)
	}
	if date, err := reader.Header.Date(); err == nil {
		parsed.Date = date
	}
	parsed.MessageID = normalizeMessageID(reader.Header.Get("Message-Id"))

	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}
		header, ok := part.Header.(*gomail.InlineHeader)
		if !ok {
			continue
		}
		mediaType, _, ctErr := header.ContentType()
		if ctErr != nil {
			mediaType = "text/plain"
		}
		body, readErr := io.ReadAll(io.LimitReader(part.Body, maxBodyBytes))
		if readErr != nil {
			continue
		}
		switch {
		case strings.HasPrefix(mediaType, "text/plain"):
			if parsed.TextBody == "" {
				parsed.TextBody = string(body)
			}
		case strings.HasPrefix(mediaType, "text/html"):
			if parsed.HTMLBody == "" {
				parsed.HTMLBody = string(body)
			}
		default:
			if parsed.TextBody == "" && parsed.HTMLBody == "" {
				parsed.TextBody = string(body)
			}
		}
	}

	if parsed.TextBody == "" && parsed.HTMLBody == "" {
		legacy, legacyErr := legacyParse(raw)
		if legacyErr == nil {
			parsed.TextBody = legacy.TextBody
			if parsed.Subject == "" {
				parsed.Subject = legacy.Subject
			}
			if parsed.FromEmail == "" {
				parsed.FromEmail = legacy.FromEmail
				parsed.FromName = legacy.FromName
			}
			if parsed.MessageID == "" {
				parsed.MessageID = legacy.MessageID
			}
		}
	}
	return parsed, nil
}

// legacyParse handles messages go-message rejects, using net/mail and taking
// the body verbatim.
func legacyParse(raw []byte) (*ParsedEmail, error) {
	reader, err := stdmail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	parsed := &ParsedEmail{RawSize: int64(len(raw))}
	decoder := &mime.WordDecoder{}
	subject := strings.TrimSpace(reader.Header.Get("Subject"))
	if decoded, decErr := decoder.DecodeHeader(subject); decErr == nil {
		subject = decoded
	}
	parsed.Subject = subject
	if addr, addrErr := stdmail.ParseAddress(reader.Header.Get("From")); addrErr == nil {
		parsed.FromEmail = strings.TrimSpace(addr.Address)
		parsed.FromName = strings.TrimSpace(addr.Name)
	}
	if date, dateErr := reader.Header.Date(); dateErr == nil {
		parsed.Date = date
	}
	parsed.MessageID = normalizeMessageID(reader.Header.Get("Message-Id"))
	body, readErr := io.ReadAll(io.LimitReader(reader.Body, maxBodyBytes))
	if readErr == nil {
		parsed.TextBody = string(body)
	}
	return parsed, nil
}

func normalizeMessageID(value string) string {
	value = strings.TrimSpace(value)
	value = strings.Trim(value, "<>")
	value = strings.Trim(value, "\"")
	return strings.TrimSpace(value)
}
