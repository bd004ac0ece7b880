package dex

import "fmt"

// uleb128 decodes an unsigned LEB128 value and returns it with the number of
// bytes consumed. DEX caps encoded values at 32 bits (5 bytes).
func uleb128(data []byte) (uint32, int, error) {
	var result uint32
	var shift uint
	for i := 0; i < len(data); i++ {
		b := data[i]
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, i + 1, nil
		}
		shift += 7
		if shift >= 35 {
			return 0, 0, fmt.Errorf("uleb128 longer than 5 bytes")
		}
	}
	return 0, 0, fmt.Errorf("truncated uleb128")
}
