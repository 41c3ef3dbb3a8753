// Package sanitize guards the trust boundaries of the router: privacy
// redaction before text leaves the process to a remote model, and prompt
// hardening before user input is interpolated into a model prompt.
package sanitize

import (
	"regexp"
	"strings"
)

// A redaction pass replaces one class of PII-shaped substrings. Passes run
// in a fixed order: structured patterns (private keys) before general ones
// (emails), so a broad pattern never corrupts a partial match of a narrow
// one.
type redactionPass struct {
	name        string
	pattern     *regexp.Regexp
	replacement string
}

var (
	pemKeyPattern = regexp.MustCompile(`(?s)-----BEGIN [A-Z ]*PRIVATE KEY-----.*?-----END [A-Z ]*PRIVATE KEY-----`)
	macPattern    = regexp.MustCompile(`\b[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}\b`)
	ipv4Pattern   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	emailPattern  = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern  = regexp.MustCompile(`(?:\+?\d{1,3}[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`)
)

var defaultPasses = []redactionPass{
	{name: "private_key", pattern: pemKeyPattern, replacement: "[REDACTED_KEY]"},
	{name: "mac", pattern: macPattern, replacement: "[MAC]"},
	{name: "ipv4", pattern: ipv4Pattern, replacement: "[IP]"},
	{name: "email", pattern: emailPattern, replacement: "[EMAIL]"},
	{name: "phone", pattern: phonePattern, replacement: "[PHONE]"},
}

// PrivacySanitizer redacts PII-shaped substrings and operator-configured
// keywords before any text crosses the boundary to a remote model.
type PrivacySanitizer struct {
	passes   []redactionPass
	keywords []string
}

// NewPrivacySanitizer creates a sanitizer with the built-in PII passes plus
// the given operator-configured redact keywords (matched case-insensitively).
func NewPrivacySanitizer(keywords []string) *PrivacySanitizer {
	return &PrivacySanitizer{
		passes:   defaultPasses,
		keywords: keywords,
	}
}

// Sanitize runs every redaction pass over the input in fixed order
func (s *PrivacySanitizer) Sanitize(text string) string {
	for _, pass := range s.passes {
		text = pass.pattern.ReplaceAllString(text, pass.replacement)
	}
	for _, keyword := range s.keywords {
		if keyword == "" {
			continue
		}
		text = replaceInsensitive(text, keyword, "[REDACTED]")
	}
	return text
}

// replaceInsensitive replaces every case-insensitive occurrence of old in s
func replaceInsensitive(s, old, replacement string) string {
	lower := strings.ToLower(s)
	target := strings.ToLower(old)

	var b strings.Builder
	for {
		idx := strings.Index(lower, target)
		if idx < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:idx])
		b.WriteString(replacement)
		s = s[idx+len(old):]
		lower = lower[idx+len(target):]
	}
}
