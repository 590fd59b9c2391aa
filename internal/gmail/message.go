package gmail

import (
	"encoding/base64"
	"html"
	"mime"
	"regexp"
	"strings"
	"time"

	"golang.org/x/text/encoding/htmlindex"
	gmail "google.golang.org/api/gmail/v1"
)

// Email is a parsed Gmail message with the fields the pipeline cares about
type Email struct {
	ID         string
	ThreadID   string
	Subject    string
	Sender     string
	ReceivedAt time.Time
	Snippet    string
	Body       string
}

// ParseMessage converts a full-format Gmail message into an Email.
// The body is the first non-empty text/plain part; when only HTML parts
// exist the markup is stripped to plain text.
func ParseMessage(m *gmail.Message) Email {
	email := Email{
		ID:       m.Id,
		ThreadID: m.ThreadId,
		Snippet:  m.Snippet,
	}

	if m.InternalDate > 0 {
		email.ReceivedAt = time.UnixMilli(m.InternalDate).UTC()
	}

	if m.Payload == nil {
		return email
	}

	email.Subject = HeaderValue(m, "Subject")
	if email.Subject == "" {
		email.Subject = "(No subject)"
	}
	email.Sender = HeaderValue(m, "From")

	text, htmlBody := gatherBodies(m.Payload)
	body := text
	if strings.TrimSpace(body) == "" {
		body = HTMLToText(htmlBody)
	}
	email.Body = strings.TrimSpace(body)

	return email
}

// HeaderValue extracts a header value from a Gmail message.
// Header names are matched case-insensitively per RFC 5322.
func HeaderValue(m *gmail.Message, header string) string {
	if m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// gatherBodies walks the MIME tree collecting the first non-empty
// text/plain and text/html leaf bodies.
func gatherBodies(part *gmail.MessagePart) (text, htmlBody string) {
	var texts, htmls []string

	var walk func(p *gmail.MessagePart)
	walk = func(p *gmail.MessagePart) {
		if p == nil {
			return
		}
		if len(p.Parts) > 0 {
			for _, child := range p.Parts {
				walk(child)
			}
			return
		}
		mimeType := strings.ToLower(p.MimeType)
		switch {
		case strings.HasPrefix(mimeType, "text/plain"):
			texts = append(texts, decodePartBody(p))
		case strings.HasPrefix(mimeType, "text/html"):
			htmls = append(htmls, decodePartBody(p))
		}
	}
	walk(part)

	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			text = t
			break
		}
	}
	for _, h := range htmls {
		if strings.TrimSpace(h) != "" {
			htmlBody = h
			break
		}
	}
	return text, htmlBody
}

// decodePartBody decodes the base64url-encoded body data of a leaf part
// and transcodes it to UTF-8 when the part declares another charset.
func decodePartBody(p *gmail.MessagePart) string {
	if p.Body == nil || p.Body.Data == "" {
		return ""
	}
	raw, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(p.Body.Data, "="))
	if err != nil {
		return ""
	}
	return decodeCharset(raw, partCharset(p))
}

// partCharset returns the charset declared in a part's Content-Type
// header, or "" when none is declared.
func partCharset(p *gmail.MessagePart) string {
	for _, h := range p.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		_, params, err := mime.ParseMediaType(h.Value)
		if err != nil {
			return ""
		}
		return params["charset"]
	}
	return ""
}

// decodeCharset transcodes raw bytes to UTF-8 based on the declared
// charset. UTF-8 and ASCII pass through unchanged, as does anything with
// an unknown charset or a failed conversion.
func decodeCharset(raw []byte, charset string) string {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8", "us-ascii", "ascii":
		return string(raw)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(raw)
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

var (
	scriptStyleRe = regexp.MustCompile(`(?is)<(script|style|head)[^>]*>.*?</(script|style|head)>`)
	brRe          = regexp.MustCompile(`(?i)<br\s*/?>`)
	blockCloseRe  = regexp.MustCompile(`(?i)</(p|div|tr|li|h[1-6]|blockquote)>`)
	tagRe         = regexp.MustCompile(`<[^>]*>`)
	blankRunsRe   = regexp.MustCompile(`\n\s*\n\s*\n+`)
)

// HTMLToText strips HTML markup to a readable plain-text approximation.
// Scripts and styles are dropped, line-break and block-level closing tags
// become newlines, entities are unescaped and blank runs collapsed.
func HTMLToText(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}

	s = scriptStyleRe.ReplaceAllString(s, "")
	s = brRe.ReplaceAllString(s, "\n")
	s = blockCloseRe.ReplaceAllString(s, "\n")
	s = tagRe.ReplaceAllString(s, "")
	s = html.UnescapeString(s)
	s = blankRunsRe.ReplaceAllString(s, "\n\n")

	var lines []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
