// Package mailparse converts RFC 5322 messages and Gmail API payloads into
// the part trees consumed by the triage service.
package mailparse

import (
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	gomessage "github.com/emersion/go-message"
	gomail "github.com/emersion/go-message/mail"
	"golang.org/x/text/encoding/htmlindex"
	"google.golang.org/api/gmail/v1"

	"github.com/mikey/mail-triage/internal/core"
)

const defaultMimeType = "text/plain"

func init() {
	gomessage.CharsetReader = charsetReader
}

// charsetReader decodes any WHATWG-labelled charset into UTF-8
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unhandled charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

// Parse reads a raw message and returns its envelope fields and part tree.
// Transfer encodings and charsets are decoded; part data is re-encoded as
// base64url.
func Parse(r io.Reader) (*core.InboundMessage, error) {
	entity, err := gomessage.Read(r)
	if err != nil && !recoverable(err) {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	header := gomail.Header{Header: entity.Header}
	email := &core.Email{
		ID:      messageID(header),
		From:    headerText(header, "From"),
		Subject: subject(header),
	}

	payload, err := toPart(entity)
	if err != nil {
		return nil, err
	}

	return &core.InboundMessage{Email: email, Payload: payload}, nil
}

// recoverable reports errors after which go-message still returns a usable
// entity with the raw body
func recoverable(err error) bool {
	return gomessage.IsUnknownCharset(err) || gomessage.IsUnknownEncoding(err)
}

func toPart(entity *gomessage.Entity) (*core.Part, error) {
	part := &core.Part{MimeType: mediaType(entity.Header)}

	if mr := entity.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !recoverable(err) {
				return nil, fmt.Errorf("failed to read %s part: %w", part.MimeType, err)
			}
			sub, err := toPart(child)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, sub)
		}
		return part, nil
	}

	body, err := io.ReadAll(entity.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s body: %w", part.MimeType, err)
	}
	if len(body) > 0 {
		part.Data = base64.URLEncoding.EncodeToString(body)
	}
	return part, nil
}

func mediaType(h gomessage.Header) string {
	t, _, err := h.ContentType()
	if err != nil || t == "" {
		return defaultMimeType
	}
	return strings.ToLower(t)
}

func messageID(h gomail.Header) string {
	if id, err := h.MessageID(); err == nil && id != "" {
		return id
	}
	return strings.Trim(strings.TrimSpace(h.Get("Message-Id")), "<>")
}

func subject(h gomail.Header) string {
	if s, err := h.Subject(); err == nil {
		return s
	}
	return h.Get("Subject")
}

func headerText(h gomail.Header, key string) string {
	if s, err := h.Text(key); err == nil {
		return s
	}
	return h.Get(key)
}

// FromGmail converts a Gmail API payload. Gmail already encodes part data as
// base64url, so it is carried over unchanged.
func FromGmail(p *gmail.MessagePart) *core.Part {
	if p == nil {
		return nil
	}
	part := &core.Part{MimeType: strings.ToLower(p.MimeType)}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		if sub := FromGmail(child); sub != nil {
			part.Parts = append(part.Parts, sub)
		}
	}
	return part
}

// GmailHeader returns the first header value with the given name
func GmailHeader(p *gmail.MessagePart, name string) string {
	if p == nil {
		return ""
	}
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
