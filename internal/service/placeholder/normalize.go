// Package placeholder prepares the variables handed to the template
// renderer: it fills the fixed layout placeholders every notification
// template relies on, and builds resource-specific placeholder sets for
// scheduled rules.
package placeholder

import (
	"fmt"
	"html"
	"strings"
)

// Canonical layout placeholder names.
const (
	KeyTitle         = "Title"
	KeyDescription   = "Description"
	KeyContent       = "Content"
	KeyFooter        = "Footer"
	KeyActionSection = "ActionSection"
	KeyActionURL     = "ActionUrl"
	KeyActionText    = "ActionText"
)

const (
	DefaultTitle      = "Notification"
	DefaultFooter     = "This notification was sent automatically. Please do not reply to this email."
	DefaultActionText = "View details"
)

var layoutDefaults = []struct{ key, value string }{
	{KeyTitle, DefaultTitle},
	{KeyDescription, ""},
	{KeyContent, ""},
	{KeyFooter, DefaultFooter},
}

// Normalize returns a copy of raw in which the layout placeholders always
// exist under their canonical names. Keys are matched case-insensitively;
// keys outside the layout set pass through untouched. Normalize is
// idempotent.
func Normalize(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw)+len(layoutDefaults)+1)
	for k, v := range raw {
		out[k] = v
	}

	for _, d := range layoutDefaults {
		v, ok := take(out, d.key)
		if !ok {
			v = d.value
		}
		out[d.key] = v
	}

	section, _ := take(out, KeyActionSection)
	if section == "" {
		url, _ := lookup(out, KeyActionURL)
		section = actionSection(url, func() string {
			text, _ := lookup(out, KeyActionText)
			return text
		}())
	}
	out[KeyActionSection] = section
	return out
}

func actionSection(url, text string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.TrimSpace(text) == "" {
		text = DefaultActionText
	}
	return fmt.Sprintf(`<a href="%s" class="action-button" style="display:inline-block;padding:10px 18px;background:#1f6feb;color:#ffffff;text-decoration:none;border-radius:4px;">%s</a>`,
		html.EscapeString(url), html.EscapeString(text))
}

// take removes every case-variant of key from m and returns the value stored
// under the canonical spelling if present, otherwise the first variant
// found in sorted key order.
func take(m map[string]string, key string) (string, bool) {
	v, ok := lookup(m, key)
	for k := range m {
		if strings.EqualFold(k, key) {
			delete(m, k)
		}
	}
	return v, ok
}

// lookup finds key case-insensitively, preferring the canonical spelling.
func lookup(m map[string]string, key string) (string, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	var (
		found string
		val   string
	)
	for k, v := range m {
		if strings.EqualFold(k, key) && (found == "" || k < found) {
			found, val = k, v
		}
	}
	return val, found != ""
}
