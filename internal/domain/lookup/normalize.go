// Package lookup holds the single key normalization used by every string
// match in the engine, and the lookup table built on top of it.
package lookup

import (
	"strings"
	"unicode"
)

// NormalizeKey folds case, turns underscores and hyphens into spaces,
// collapses runs of whitespace and trims the result. Table keys and raw
// input must both pass through it before comparison.
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			space = b.Len() > 0
		default:
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(unicode.ToLower(r))
		}
	}
	return b.String()
}
