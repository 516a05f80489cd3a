package types

import "strings"

// Slugify derives a stable city identifier from a display name: lowercase,
// with every run of non-alphanumeric characters collapsed to a single hyphen
// and leading/trailing hyphens trimmed. Collision disambiguation (the numeric
// suffix) is the city store's responsibility, since it requires knowledge of
// existing identifiers.
func Slugify(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pendingSep := false
	for _, r := range strings.ToLower(name) {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !isAlnum {
			if b.Len() > 0 {
				pendingSep = true
			}
			continue
		}
		if pendingSep {
			b.WriteByte('-')
			pendingSep = false
		}
		b.WriteRune(r)
	}

	return b.String()
}
