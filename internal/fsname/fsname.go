// Package fsname maps record keys to file names.
package fsname

import "strings"

const hexDigits = "0123456789ABCDEF"

// Encode maps key to a file name one to one. Bytes outside [A-Za-z0-9_-]
// are written as ~XX, so distinct keys never share a file and a key never
// escapes its folder.
func Encode(key string) string {
	var builder strings.Builder
	builder.Grow(len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		switch {
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9', c == '_', c == '-':
			builder.WriteByte(c)
		default:
			builder.WriteByte('~')
			builder.WriteByte(hexDigits[c>>4])
			builder.WriteByte(hexDigits[c&0x0F])
		}
	}
	return builder.String()
}
