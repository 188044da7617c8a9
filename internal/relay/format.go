package relay

import (
	"fmt"
	"strings"

	"github.com/shineum/email-relay/internal/email"
)

// Placeholders rendered in place of absent or empty message fields.
const (
	NoSubject     = "(no subject)"
	NoContent     = "(no content)"
	NoAttachments = "*No Attachments*"
)

// Format renders the chat notification for one email. Sender and recipient
// are the envelope addresses. The output depends only on its inputs.
func Format(from, to string, msg *email.Email) string {
	var b strings.Builder

	b.WriteString("📧 *New Email Received*\n\n")
	fmt.Fprintf(&b, "From: %s\n", from)
	fmt.Fprintf(&b, "To: %s\n", to)
	fmt.Fprintf(&b, "Subject: %s\n\n", valueOr(msg.Subject, NoSubject))
	b.WriteString("*Content:*\n```")
	b.WriteString(valueOr(msg.Text, NoContent))
	b.WriteString("```")

	if len(msg.Attachments) == 0 {
		b.WriteString("\n\n" + NoAttachments)
		return b.String()
	}

	b.WriteString("\n\n*Attachments:*")
	for i, att := range msg.Attachments {
		fmt.Fprintf(&b, "\n%d. %s", i+1, att.Filename)
	}
	return b.String()
}

// valueOr returns *s, or placeholder when s is nil or points at "".
func valueOr(s *string, placeholder string) string {
	if s == nil || *s == "" {
		return placeholder
	}
	return *s
}
