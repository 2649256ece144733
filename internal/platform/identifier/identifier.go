// Package identifier derives stable, filesystem-safe keys from human-entered
// names. Profiles, medication cards, and logs are all keyed on disk by these
// identifiers, so the mapping must be deterministic: the same logical name
// always yields the same identifier.
package identifier

import (
	"strings"
	"unicode"
)

// Normalize converts a raw human-entered name into a filesystem-safe
// identifier. It lower-cases the input, collapses whitespace runs into a
// single underscore, drops every rune outside [a-z0-9_-], and trims leading
// and trailing separators. Normalize is a pure function.
func Normalize(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))

	var b strings.Builder
	b.Grow(len(raw))
	lastSep := false
	for _, r := range raw {
		switch {
		case unicode.IsSpace(r):
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
			lastSep = false
		case r == '_':
			if !lastSep {
				b.WriteByte('_')
				lastSep = true
			}
		default:
			// Unsafe for file paths; dropped.
		}
	}

	return strings.Trim(b.String(), "_")
}

// NormalizeMonth converts a free-form month-year label such as "January 2025"
// into the filename component used for log documents.
func NormalizeMonth(monthYear string) string {
	return Normalize(strings.ReplaceAll(monthYear, ",", ""))
}
