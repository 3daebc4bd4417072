// Package sanitize cleans user-supplied strings before they become file
// names, object names, or database values.
package sanitize

import (
	"regexp"
	"strings"
)

// MaxNameLength is the maximum length of a sanitized name.
const MaxNameLength = 80

// MaxTextLength is the maximum length of sanitized free text.
const MaxTextLength = 500

// FallbackName replaces names that sanitize to nothing.
const FallbackName = "experiment"

var (
	reRepeatedHyphens     = regexp.MustCompile(`-{2,}`)
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
	reRepeatedSpaces      = regexp.MustCompile(`[ \t]{2,}`)
)

// Name reduces input to [a-zA-Z0-9._-] so it is safe as a path element and
// an object name. Whitespace becomes a hyphen, repeated separators collapse,
// leading dots are dropped, and the result is at most MaxNameLength bytes.
// An input with no usable characters yields FallbackName.
func Name(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9'),
			r == '-', r == '_', r == '.':
			b.WriteRune(r)
		case r == ' ' || r == '\t':
			b.WriteRune('-')
		}
	}
	s := b.String()

	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	s = strings.TrimLeft(s, ".")
	s = strings.Trim(s, "-")

	if len(s) > MaxNameLength {
		s = s[:MaxNameLength]
	}
	if s == "" {
		return FallbackName
	}
	return s
}

// Text strips control characters (newlines included), collapses runs of
// blanks, trims, and truncates to MaxTextLength.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := stripControlChars(input)
	s = reRepeatedSpaces.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)
	if len(s) > MaxTextLength {
		s = s[:MaxTextLength] + "..."
	}
	return s
}

// stripControlChars removes ASCII control characters and DEL. Tabs are kept.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if (r < 0x20 && r != '\t') || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
