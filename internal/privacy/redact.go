// Package privacy strips personal data from text that leaves the service.
package privacy

import (
	"regexp"
	"strings"
)

// rule replaces one kind of sensitive match with a fixed marker.
type rule struct {
	kind    string
	pattern *regexp.Regexp
	marker  string
}

// rules run in order; secrets first so a key that looks like a number is
// not reported as a phone.
var rules = []rule{
	{"secret", regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_.-]{20,}`), "[REDACTED]"},
	{"secret", regexp.MustCompile(`sk-(?:or-|ant-)?[a-zA-Z0-9-]{20,}`), "[REDACTED]"},
	{"secret", regexp.MustCompile(`(?i)(?:api[_-]?key|password|passwd|token)\s*[:=]\s*['"]?[^\s'"]{8,}['"]?`), "[REDACTED]"},
	{"email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[EMAIL]"},
	{"phone", regexp.MustCompile(`(?:\+\d{1,3}[\s-]?)?\b\d{3}[\s-]?\d{3}[\s-]?\d{4}\b`), "[PHONE]"},
}

// Findings returns the kinds of sensitive data present in text, each once,
// in rule order.
func Findings(text string) []string {
	if text == "" {
		return nil
	}
	var kinds []string
	for _, r := range rules {
		if !r.pattern.MatchString(text) {
			continue
		}
		if len(kinds) == 0 || kinds[len(kinds)-1] != r.kind {
			kinds = append(kinds, r.kind)
		}
	}
	return kinds
}

// ContainsPII reports whether text holds an email, phone number or secret.
func ContainsPII(text string) bool {
	return len(Findings(text)) > 0
}

// Redact replaces emails, phone numbers and secrets with markers.
func Redact(text string) string {
	if text == "" {
		return text
	}
	for _, r := range rules {
		text = r.pattern.ReplaceAllString(text, r.marker)
	}
	return strings.TrimSpace(text)
}
