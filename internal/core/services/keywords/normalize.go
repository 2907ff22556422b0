package keywords

import (
	"regexp"
	"strings"
)

// trailingJunk is stripped from the right of every match.
const trailingJunk = `]/;.”":)(,`

var multiSpace = regexp.MustCompile(` {2,}`)

// Normalize canonicalizes a raw match. Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	for {
		next := strings.TrimSpace(strings.TrimRight(s, trailingJunk))
		if next == s {
			break
		}
		s = next
	}
	return multiSpace.ReplaceAllString(s, " ")
}
