package mailparse

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"

	"github.com/mikey/mail-triage/internal/core"
)

const multipartMessage = "From: =?UTF-8?Q?Acme_Fr=C3=A9ight?= <tenders@acmefreight.com>\r\n" +
	"To: dispatch@mycarrier.com\r\n" +
	"Subject: =?ISO-8859-1?Q?Re:_Load_offer_#48213_caf=E9?=\r\n" +
	"Message-Id: <abc123@acmefreight.com>\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=iso-8859-1\r\n" +
	"Content-Transfer-Encoding: quoted-printable\r\n" +
	"\r\n" +
	"Caf=E9 tomorrow?\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"Content-Transfer-Encoding: base64\r\n" +
	"\r\n" +
	"PHA+Q2FuIHlvdSBjb3Zlcj88L3A+\r\n" +
	"--b1--\r\n"

func TestParseMultipart(t *testing.T) {
	msg, err := Parse(strings.NewReader(multipartMessage))
	require.NoError(t, err)

	assert.Equal(t, "abc123@acmefreight.com", msg.Email.ID)
	assert.Equal(t, "Acme Fréight <tenders@acmefreight.com>", msg.Email.From)
	assert.Equal(t, "Re: Load offer #48213 café", msg.Email.Subject)

	require.NotNil(t, msg.Payload)
	assert.Equal(t, "multipart/alternative", msg.Payload.MimeType)
	require.Len(t, msg.Payload.Parts, 2)
	assert.Equal(t, "text/plain", msg.Payload.Parts[0].MimeType)
	assert.Equal(t, "Café tomorrow?", core.DecodePartData(msg.Payload.Parts[0].Data))
	assert.Equal(t, "text/html", msg.Payload.Parts[1].MimeType)
	assert.Equal(t, "<p>Can you cover?</p>", core.DecodePartData(msg.Payload.Parts[1].Data))

	reply := core.ExtractLatestReply(msg.Payload)
	assert.Equal(t, "Can you cover?", reply.CleanReply)
}

func TestParseSinglePart(t *testing.T) {
	raw := "From: ops@example.com\r\nSubject: hello\r\n\r\nJust text\r\n"

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "", msg.Email.ID)
	assert.Equal(t, defaultMimeType, msg.Payload.MimeType)
	assert.Empty(t, msg.Payload.Parts)
	assert.Equal(t, "Just text\r\n", core.DecodePartData(msg.Payload.Data))
}

func TestParseUnknownCharsetKeepsBody(t *testing.T) {
	raw := "From: ops@example.com\r\nContent-Type: text/plain; charset=x-made-up\r\n\r\nraw bytes"

	msg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "raw bytes", core.DecodePartData(msg.Payload.Data))
}

func TestFromGmail(t *testing.T) {
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Headers: []*gmail.MessagePartHeader{
			{Name: "From", Value: "a@b.com"},
			{Name: "Subject", Value: "Load offer"},
		},
		Parts: []*gmail.MessagePart{
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: "aGk"}},
			nil,
			{MimeType: "TEXT/HTML", Body: &gmail.MessagePartBody{Data: "PGI-aGk8L2I-"}},
		},
	}

	part := FromGmail(payload)
	require.Len(t, part.Parts, 2)
	assert.Equal(t, "aGk", part.Parts[0].Data)
	assert.Equal(t, "text/html", part.Parts[1].MimeType)

	assert.Equal(t, "Load offer", GmailHeader(payload, "subject"))
	assert.Equal(t, "", GmailHeader(payload, "Date"))
	assert.Nil(t, FromGmail(nil))
}
