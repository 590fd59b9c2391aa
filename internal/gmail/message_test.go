package gmail

import (
	"encoding/base64"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	gmail "google.golang.org/api/gmail/v1"
)

func b64(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestParseMessage_PlainText(t *testing.T) {
	msg := &gmail.Message{
		Id:           "msg1",
		ThreadId:     "thread1",
		Snippet:      "snippet text",
		InternalDate: 1700000000000,
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Pay the invoice"},
				{Name: "From", Value: "Alice <alice@example.com>"},
			},
			Body: &gmail.MessagePartBody{Data: b64("Please pay by Friday.")},
		},
	}

	email := ParseMessage(msg)
	assert.Equal(t, "msg1", email.ID)
	assert.Equal(t, "thread1", email.ThreadID)
	assert.Equal(t, "Pay the invoice", email.Subject)
	assert.Equal(t, "Alice <alice@example.com>", email.Sender)
	assert.Equal(t, "Please pay by Friday.", email.Body)
	assert.Equal(t, "snippet text", email.Snippet)
	assert.Equal(t, 2023, email.ReceivedAt.Year())
}

func TestParseMessage_MultipartPrefersPlainText(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg2",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "subject", Value: "Mixed content"},
				{Name: "FROM", Value: "bob@example.com"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain; charset=utf-8",
					Body:     &gmail.MessagePartBody{Data: b64("plain version")},
				},
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<p>html version</p>")},
				},
			},
		},
	}

	email := ParseMessage(msg)
	// Header matching is case-insensitive
	assert.Equal(t, "Mixed content", email.Subject)
	assert.Equal(t, "bob@example.com", email.Sender)
	assert.Equal(t, "plain version", email.Body)
}

func TestParseMessage_HTMLFallback(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg3",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "HTML only"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/html",
					Body:     &gmail.MessagePartBody{Data: b64("<div>First line</div><div>Second &amp; third</div>")},
				},
			},
		},
	}

	email := ParseMessage(msg)
	assert.Equal(t, "First line\nSecond & third", email.Body)
}

func TestParseMessage_NestedMultipart(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg4",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/mixed",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Nested"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "multipart/alternative",
					Parts: []*gmail.MessagePart{
						{
							MimeType: "text/plain",
							Body:     &gmail.MessagePartBody{Data: b64("nested body")},
						},
					},
				},
				{
					MimeType: "application/pdf",
					Body:     &gmail.MessagePartBody{AttachmentId: "att1"},
				},
			},
		},
	}

	email := ParseMessage(msg)
	assert.Equal(t, "nested body", email.Body)
}

func TestParseMessage_Latin1Charset(t *testing.T) {
	// "prüfen" with the ü encoded as the ISO-8859-1 byte 0xFC.
	raw := []byte("Bitte diese Woche pr\xfcfen")
	msg := &gmail.Message{
		Id: "msg7",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: "Umlaut body"},
			},
			Parts: []*gmail.MessagePart{
				{
					MimeType: "text/plain",
					Headers: []*gmail.MessagePartHeader{
						{Name: "Content-Type", Value: `text/plain; charset="ISO-8859-1"`},
					},
					Body: &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString(raw)},
				},
			},
		},
	}

	email := ParseMessage(msg)
	assert.Equal(t, "Bitte diese Woche prüfen", email.Body)
	assert.True(t, utf8.ValidString(email.Body))
}

func TestDecodeCharset(t *testing.T) {
	tests := []struct {
		name     string
		raw      []byte
		charset  string
		expected string
	}{
		{
			name:     "no charset passes through",
			raw:      []byte("hello"),
			charset:  "",
			expected: "hello",
		},
		{
			name:     "utf-8 passes through",
			raw:      []byte("héllo"),
			charset:  "UTF-8",
			expected: "héllo",
		},
		{
			name:     "latin-1 transcoded",
			raw:      []byte("h\xe9llo"),
			charset:  "iso-8859-1",
			expected: "héllo",
		},
		{
			name:     "windows-1252 transcoded",
			raw:      []byte("caf\xe9"),
			charset:  "windows-1252",
			expected: "café",
		},
		{
			name:     "unknown charset passes through",
			raw:      []byte("hello"),
			charset:  "x-no-such-charset",
			expected: "hello",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, decodeCharset(tt.raw, tt.charset))
		})
	}
}

func TestParseMessage_NoSubject(t *testing.T) {
	msg := &gmail.Message{
		Id: "msg5",
		Payload: &gmail.MessagePart{
			MimeType: "text/plain",
			Body:     &gmail.MessagePartBody{Data: b64("body")},
		},
	}

	email := ParseMessage(msg)
	assert.Equal(t, "(No subject)", email.Subject)
}

func TestParseMessage_NilPayload(t *testing.T) {
	email := ParseMessage(&gmail.Message{Id: "msg6", Snippet: "only snippet"})
	assert.Equal(t, "msg6", email.ID)
	assert.Equal(t, "only snippet", email.Snippet)
	assert.Empty(t, email.Body)
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "breaks become newlines",
			input:    "line one<br>line two<br/>line three",
			expected: "line one\nline two\nline three",
		},
		{
			name:     "script and style dropped",
			input:    "<style>body { color: red }</style><script>alert(1)</script>visible",
			expected: "visible",
		},
		{
			name:     "entities unescaped",
			input:    "Tom &amp; Jerry &lt;3",
			expected: "Tom & Jerry <3",
		},
		{
			name:     "blank runs collapsed",
			input:    "<p>a</p><p></p><p></p><p>b</p>",
			expected: "a\nb",
		},
		{
			name:     "empty input",
			input:    "   ",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTMLToText(tt.input))
		})
	}
}

func TestHeaderValue_CaseInsensitive(t *testing.T) {
	msg := &gmail.Message{
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "List-Unsubscribe", Value: "<mailto:x@example.com>"},
			},
		},
	}
	assert.Equal(t, "<mailto:x@example.com>", HeaderValue(msg, "list-unsubscribe"))
	assert.Empty(t, HeaderValue(msg, "Reply-To"))
}
