package service

import (
	"regexp"
	"strings"
)

// DefaultSubjectTemplate is used when a bulk request has no subject.
const DefaultSubjectTemplate = "Your Ticket for {{event}}"

// DefaultBodyTemplate is used when a bulk request has no body template.
// The QR image is referenced through its inline attachment content id.
const DefaultBodyTemplate = `<!doctype html>
<p>Hi {{name}},</p>
<p>Here are your ticket details for <strong>{{event}}</strong>:</p>
<ul>
  <li><strong>Seat:</strong> {{seat}}</li>
  <li><strong>Ticket Code:</strong> {{ticket_code}}</li>
  <li><strong>Starts:</strong> {{event_starts}}</li>
</ul>
<p>Present this QR code at the entrance:</p>
<p><img src="cid:{{qr_cid}}" alt="Ticket QR Code" style="max-width:240px;" /></p>
<p>If you have any questions, reply to this email. See you there!</p>`

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Interpolate replaces every {{ key }} marker in tmpl with data[lower(key)].
// Markers whose key is not in data are replaced with the empty string.
// Substituted values are not rescanned.
func Interpolate(tmpl string, data map[string]string) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(m string) string {
		key := placeholder.FindStringSubmatch(m)[1]
		return data[strings.ToLower(key)]
	})
}

// orDefault returns s unless it is blank.
func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
