// Package svg cleans and sanity-checks model output that is supposed to be
// SVG markup. Models wrap answers in markdown fences often enough that the
// stripping has to happen before validation.
package svg

import (
	"regexp"
	"strings"
)

var (
	openFence  = regexp.MustCompile(`(?i)^\s*` + "```" + `(?:svg|xml)?\s*`)
	closeFence = regexp.MustCompile(`(?i)\s*` + "```" + `\s*$`)
)

// StripFences removes a leading ```svg / ```xml / ``` fence and a trailing
// ``` fence, plus surrounding whitespace.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")
	return s
}

// Valid reports whether s plausibly contains a complete SVG document after
// fence stripping. This is a shape check, not an XML parse.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	clean := StripFences(s)
	return strings.HasPrefix(strings.ToLower(clean), "<svg") && strings.HasSuffix(clean, ">")
}
