package mailbox

import (
	"encoding/base64"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

func headerValue(message *gmail.Message, name string) string {
	if message == nil || message.Payload == nil {
		return ""
	}
	for _, header := range message.Payload.Headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

// extractBody walks the whole MIME tree: any text/plain part, however deeply
// nested, wins over text/html; a single non-multipart payload decodes as-is.
func extractBody(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	if html := findPart(payload, "text/html"); html != "" {
		return html
	}
	if len(payload.Parts) == 0 {
		return decodePart(payload)
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if part.MimeType == mimeType {
		if text := decodePart(part); text != "" {
			return text
		}
	}
	for _, child := range part.Parts {
		if text := findPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func decodePart(part *gmail.MessagePart) string {
	if part == nil || part.Body == nil || part.Body.Data == "" {
		return ""
	}
	data, err := base64.RawURLEncoding.DecodeString(part.Body.Data)
	if err != nil {
		if data, err = base64.URLEncoding.DecodeString(part.Body.Data); err != nil {
			return ""
		}
	}
	return string(data)
}
