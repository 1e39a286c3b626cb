// file: pkg/diskimg/petscii.go

package diskimg

import "strings"

// petsciiPad is the shifted-space byte CBM DOS uses to pad fixed-width
// PETSCII fields (disk labels, IDs, filenames).
const petsciiPad = 0xA0

// toA0 upper-cases s and returns it as a length-n PETSCII byte slice,
// padded with 0xA0 (truncated if s is longer than n).
func toA0(s string, n int) []byte {
	s = strings.ToUpper(s)
	out := make([]byte, n)
	for i := range out {
		out[i] = petsciiPad
	}
	copy(out, []byte(s))
	if len(s) > n {
		copy(out, []byte(s[:n]))
	}
	return out
}

// a0ToASCII projects a PETSCII-padded field to an ASCII string for display:
// 0xA0 and 0x00 bytes render as space, and trailing whitespace is trimmed.
func a0ToASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c == petsciiPad || c == 0x00 {
			out[i] = ' '
		} else {
			out[i] = c
		}
	}
	return strings.TrimRight(string(out), " ")
}

// petsciiEqualFold reports whether raw (PETSCII, 0xA0-padded) and name
// (an ASCII string, possibly shorter) refer to the same filename, whether
// name is itself PETSCII-padded or not.
func petsciiEqualFold(raw []byte, name string) bool {
	trimmedRaw := a0ToASCII(raw)
	upperName := strings.ToUpper(strings.TrimRight(name, "\x00\xa0 "))
	if trimmedRaw == upperName {
		return true
	}
	// Also compare byte-for-byte against a repadded projection, since a
	// caller may pass the raw PETSCII bytes decoded as a Latin-1 string.
	return string(raw) == string(toA0(name, len(raw)))
}
