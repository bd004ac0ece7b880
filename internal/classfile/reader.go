package classfile

import "fmt"

// reader is a big-endian cursor over the raw classfile bytes. Every read
// reports the offset it failed at so parse errors point into the file.
type reader struct {
	data []byte
	off  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.off
}

func (r *reader) need(n int) error {
	if r.remaining() < n {
		return fmt.Errorf("truncated: need %d bytes at offset %d, have %d", n, r.off, r.remaining())
	}
	return nil
}

func (r *reader) u8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.off]
	r.off++
	return v, nil
}

func (r *reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := uint16(r.data[r.off])<<8 | uint16(r.data[r.off+1])
	r.off += 2
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := uint32(r.data[r.off])<<24 | uint32(r.data[r.off+1])<<16 |
		uint32(r.data[r.off+2])<<8 | uint32(r.data[r.off+3])
	r.off += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	hi, err := r.u32()
	if err != nil {
		return 0, err
	}
	lo, err := r.u32()
	if err != nil {
		return 0, err
	}
	return uint64(hi)<<32 | uint64(lo), nil
}

// bytes returns a copy so attribute payloads stay valid after the caller's
// input buffer is reused.
func (r *reader) bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.off:r.off+n])
	r.off += n
	return out, nil
}
