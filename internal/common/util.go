package common

import "strings"

// WipeByteArray overwrites b with zeros. Used for password buffers read from
// the terminal. A nil slice is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// BearerToken strips an optional, case-insensitive "Bearer " prefix from an
// authorization value and trims surrounding space.
func BearerToken(value string) string {
	v := strings.TrimSpace(value)
	if len(v) >= len(BearerPrefix) && strings.EqualFold(v[:len(BearerPrefix)], BearerPrefix) {
		v = v[len(BearerPrefix):]
	}
	return strings.TrimSpace(v)
}
