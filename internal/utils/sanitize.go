package utils

import (
	"html"    // Entity decoding
	"strings" // Trimming
	"sync"    // One-time policy setup

	"github.com/microcosm-cc/bluemonday" // HTML sanitizer
)

var (
	textPolicyOnce sync.Once
	textPolicy     *bluemonday.Policy
)

// SanitizeText strips all markup from user-supplied text and trims it. The
// result is plain text: entities the policy escapes are decoded again.
func SanitizeText(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	textPolicyOnce.Do(func() {
		textPolicy = bluemonday.StrictPolicy() // No elements, no attributes
	})
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(trimmed)))
}

// Truncate cuts s to at most n runes
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
