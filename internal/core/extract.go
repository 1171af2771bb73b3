package core

import (
	"encoding/base64"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// NoReadableContent is returned as the clean reply when nothing can be recovered
const NoReadableContent = "(No readable content found)"

const (
	mimeTextPlain = "text/plain"
	mimeTextHTML  = "text/html"
	mimeMessage   = "message/rfc822"
)

// quotedPlainRe marks the start of quoted history in a plain-text reply
var quotedPlainRe = regexp.MustCompile(`\n_+\n|\nOn .* wrote:\n`)

// replyMarkers identify a blockquote as quoted history
var replyMarkers = []string{"wrote:", "from:"}

// bodyParts accumulates the first plain and HTML content found in a part tree.
// Each field is written at most once.
type bodyParts struct {
	plain string
	html  string
}

func (b *bodyParts) setPlain(s string) {
	if b.plain == "" {
		b.plain = s
	}
}

func (b *bodyParts) setHTML(s string) {
	if b.html == "" {
		b.html = s
	}
}

// ExtractLatestReply walks a MIME part tree and recovers the newest
// human-authored text, with quoted history removed
func ExtractLatestReply(payload *Part) ReplyExtraction {
	body := collectBody(payload)

	original := body.html
	if original == "" {
		original = body.plain
	}

	var cleaned string
	if body.html != "" {
		cleaned = cleanHTMLReply(body.html)
	} else if body.plain != "" {
		cleaned = cleanPlainReply(body.plain)
	}

	if cleaned == "" && body.plain != "" {
		cleaned = strings.TrimSpace(body.plain)
	}
	if cleaned == "" {
		cleaned = NoReadableContent
	}

	return ReplyExtraction{OriginalBody: original, CleanReply: cleaned}
}

func collectBody(payload *Part) bodyParts {
	var body bodyParts
	if payload == nil {
		return body
	}
	if len(payload.Parts) > 0 {
		walkParts(payload.Parts, &body)
		return body
	}
	if payload.Data == "" {
		return body
	}
	content := DecodePartData(payload.Data)
	if payload.MimeType == mimeTextHTML {
		body.html = content
	} else {
		body.plain = content
	}
	return body
}

// walkParts visits parts depth first. Children fill the accumulator before
// their parent's own content, so the first part found for each type wins.
func walkParts(parts []*Part, body *bodyParts) {
	for _, part := range parts {
		if part == nil {
			continue
		}
		if len(part.Parts) > 0 {
			walkParts(part.Parts, body)
		}
		if part.Data == "" {
			continue
		}
		switch part.MimeType {
		case mimeTextPlain, mimeMessage:
			body.setPlain(DecodePartData(part.Data))
		case mimeTextHTML:
			body.setHTML(DecodePartData(part.Data))
		}
	}
}

// DecodePartData decodes base64url content, normalizing padding. It falls
// back to standard base64 and finally to the raw string.
func DecodePartData(data string) string {
	if data == "" {
		return ""
	}
	padded := data
	if rem := len(padded) % 4; rem != 0 {
		padded += strings.Repeat("=", 4-rem)
	}
	if decoded, err := base64.URLEncoding.DecodeString(padded); err == nil {
		return toText(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(data); err == nil {
		return toText(decoded)
	}
	if decoded, err := base64.StdEncoding.DecodeString(padded); err == nil {
		return toText(decoded)
	}
	return data
}

func toText(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

func cleanPlainReply(plain string) string {
	if loc := quotedPlainRe.FindStringIndex(plain); loc != nil {
		plain = plain[:loc[0]]
	}
	return strings.TrimSpace(plain)
}

// cleanHTMLReply removes quoted-reply blocks from an HTML body and returns its
// visible text, one trimmed text node per line
func cleanHTMLReply(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}

	doc.Find("blockquote").Each(func(_ int, s *goquery.Selection) {
		text := strings.ToLower(s.Text())
		for _, marker := range replyMarkers {
			if strings.Contains(text, marker) {
				s.Remove()
				return
			}
		}
	})
	doc.Find("div.gmail_quote").Remove()

	var lines []string
	for _, n := range doc.Nodes {
		lines = appendVisibleText(lines, n)
	}
	return strings.Join(lines, "\n")
}

func appendVisibleText(lines []string, n *html.Node) []string {
	switch n.Type {
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			lines = append(lines, t)
		}
		return lines
	case html.CommentNode, html.DoctypeNode:
		return lines
	case html.ElementNode:
		switch n.Data {
		case "script", "style", "template":
			return lines
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		lines = appendVisibleText(lines, c)
	}
	return lines
}
