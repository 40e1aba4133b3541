package crawler

import (
	"log/slog"
	"regexp"
	"strings"
)

// titlePattern keeps the leading title segment, dropping a trailing
// parenthetical and a trailing " - suffix" clause.
var titlePattern = regexp.MustCompile(`^(.*?)(?:\s*\([^)]+\))?(?:\s+-\s*.+)?$`)

// NormalizeName reduces a storefront title to the key used for catalog lookups.
// A title the pattern cannot handle is returned unchanged.
func NormalizeName(raw string) string {
	m := titlePattern.FindStringSubmatch(raw)
	if m == nil {
		slog.Warn("title did not match normalization pattern", "title", raw)
		return raw
	}
	return strings.TrimSpace(m[1])
}
