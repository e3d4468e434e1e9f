// Package notify delivers best-effort copies of submitted notes.
package notify

import (
	"fmt"
	"strings"

	"github.com/Anmolbaral/PersonalWebsite-Anmol/internal/models"
)

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#039;",
)

// EscapeHTML escapes the five markup-significant characters.
func EscapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}

// Subject returns the notification subject for n.
func Subject(n models.Note) string {
	return fmt.Sprintf("New note from %s (%s)", n.Name, n.Email)
}

// NoteHTML renders the notification body. Every user-supplied field is escaped.
func NoteHTML(n models.Note) string {
	var b strings.Builder
	b.WriteString("<h2>New note from your portfolio</h2>\n")
	fmt.Fprintf(&b, "<p><strong>Name:</strong> %s</p>\n", EscapeHTML(n.Name))
	fmt.Fprintf(&b, "<p><strong>Email:</strong> %s</p>\n", EscapeHTML(n.Email))
	if n.ContactInfo != "" {
		fmt.Fprintf(&b, "<p><strong>Extra contact:</strong> %s</p>\n", EscapeHTML(n.ContactInfo))
	}
	b.WriteString("<p><strong>Message:</strong></p>\n")
	fmt.Fprintf(&b, `<pre style="white-space:pre-wrap;font-family:inherit;background:#f4f4f4;padding:12px;border-radius:8px;">%s</pre>`+"\n", EscapeHTML(n.Message))
	fmt.Fprintf(&b, `<p style="color:#666;font-size:12px;">IP: %s · Note ID: %s</p>`+"\n", EscapeHTML(n.IPAddress), EscapeHTML(n.ID))
	return b.String()
}
