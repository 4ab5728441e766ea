package storage

import "strings"

// NormalizeKey brings a key into the canonical form the drivers see:
// everything after a '?' is dropped, '/' and '\' become ':', repeated
// separators collapse and leading or trailing separators are trimmed.
//
//	NormalizeKey("/users\\1/profile") == "users:1:profile"
func NormalizeKey(key string) string {
	if i := strings.IndexByte(key, '?'); i >= 0 {
		key = key[:i]
	}

	var b strings.Builder
	b.Grow(len(key))
	lastSep := true // swallows leading separators
	for i := 0; i < len(key); i++ {
		c := key[i]
		if c == '/' || c == '\\' || c == ':' {
			if !lastSep {
				b.WriteByte(':')
			}
			lastSep = true
			continue
		}
		b.WriteByte(c)
		lastSep = false
	}
	return strings.TrimSuffix(b.String(), ":")
}

// NormalizeBaseKey normalizes a base for key listing. A non empty base ends
// with ':' so that "users" does not match "users2:1".
func NormalizeBaseKey(base string) string {
	base = NormalizeKey(base)
	if base == "" {
		return ""
	}
	return base + ":"
}
