package normalize

import (
	"sort"
	"strings"
)

// ID returns a normalized form of an identifier suitable for storage and
// comparisons. Normalization currently trims surrounding whitespace.
func ID(id string) string {
	return strings.TrimSpace(id)
}

// IDs normalizes, drops empties and de-duplicates, returning a sorted set.
func IDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := ID(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Body trims message text. Interior whitespace is left as typed.
func Body(b string) string {
	return strings.TrimSpace(b)
}
