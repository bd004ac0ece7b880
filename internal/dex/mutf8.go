package dex

import "fmt"

// decodeMUTF8 decodes DEX string_data payloads, which use the same modified
// UTF-8 as the JVM: 0xC0 0x80 for NUL and CESU-8 surrogate pairs for
// supplementary characters.
func decodeMUTF8(raw []byte) (string, error) {
	out := make([]rune, 0, len(raw))
	for i := 0; i < len(raw); {
		b := raw[i]
		switch {
		case b&0x80 == 0:
			out = append(out, rune(b))
			i++
		case b&0xE0 == 0xC0:
			if i+1 >= len(raw) {
				return "", fmt.Errorf("truncated 2-byte sequence at %d", i)
			}
			out = append(out, rune(b&0x1F)<<6|rune(raw[i+1]&0x3F))
			i += 2
		case b&0xF0 == 0xE0:
			if i+2 >= len(raw) {
				return "", fmt.Errorf("truncated 3-byte sequence at %d", i)
			}
			r := rune(b&0x0F)<<12 | rune(raw[i+1]&0x3F)<<6 | rune(raw[i+2]&0x3F)
			i += 3
			if r >= 0xD800 && r <= 0xDBFF && i+2 < len(raw) && raw[i]&0xF0 == 0xE0 {
				lo := rune(raw[i]&0x0F)<<12 | rune(raw[i+1]&0x3F)<<6 | rune(raw[i+2]&0x3F)
				if lo >= 0xDC00 && lo <= 0xDFFF {
					r = 0x10000 + (r-0xD800)<<10 + (lo - 0xDC00)
					i += 3
				}
			}
			out = append(out, r)
		default:
			return "", fmt.Errorf("invalid modified UTF-8 byte 0x%02x at %d", b, i)
		}
	}
	return string(out), nil
}
