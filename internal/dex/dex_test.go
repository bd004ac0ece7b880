package dex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dexWriter assembles a little dex file for tests. Sections are appended in
// order and the header offsets patched in afterwards.
type dexWriter struct {
	buf []byte
}

func (w *dexWriter) u16(v uint16) { w.buf = append(w.buf, byte(v), byte(v>>8)) }
func (w *dexWriter) u32(v uint32) {
	w.buf = append(w.buf, byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}
func (w *dexWriter) raw(b ...byte) { w.buf = append(w.buf, b...) }

func (w *dexWriter) patch32(off int, v uint32) {
	w.buf[off] = byte(v)
	w.buf[off+1] = byte(v >> 8)
	w.buf[off+2] = byte(v >> 16)
	w.buf[off+3] = byte(v >> 24)
}

func (w *dexWriter) stringData(s string) {
	w.raw(byte(len(s))) // uleb128 utf16 length, short strings only
	w.raw([]byte(s)...)
	w.raw(0)
}

// buildRectDex lays out a one-class dex: LRect; with one instance field
// "width" and one virtual method carrying a code item.
func buildRectDex() []byte {
	w := &dexWriter{}

	// Header placeholder, patched below.
	w.raw([]byte("dex\n035\x00")...)
	w.buf = append(w.buf, make([]byte, 0x70-8)...)

	stringIDsOff := len(w.buf)
	stringDataOffs := make([]int, 3)
	for range stringDataOffs {
		w.u32(0) // patched after string data is placed
	}

	typeIDsOff := len(w.buf)
	w.u32(0) // descriptor "LRect;"

	protoIDsOff := len(w.buf)
	w.u32(2) // shorty "D"
	w.u32(0) // return type LRect; (close enough for a fixture)
	w.u32(0) // no parameters

	fieldIDsOff := len(w.buf)
	w.u16(0) // class_idx
	w.u16(0) // type_idx
	w.u32(1) // name "width"

	methodIDsOff := len(w.buf)
	w.u16(0) // class_idx
	w.u16(0) // proto_idx
	w.u32(2) // name... reuses "D"; fixtures keep the pool tiny

	classDefsOff := len(w.buf)
	w.u32(0)       // class_idx
	w.u32(1)       // flags: public
	w.u32(NoIndex) // no superclass
	w.u32(0)       // interfaces_off
	w.u32(NoIndex) // source_file_idx
	w.u32(0)       // annotations_off
	w.u32(0)       // class_data_off, patched
	w.u32(0)       // static_values_off

	strings := []string{"LRect;", "width", "D"}
	for i, s := range strings {
		stringDataOffs[i] = len(w.buf)
		w.stringData(s)
	}
	for i, off := range stringDataOffs {
		w.patch32(stringIDsOff+4*i, uint32(off))
	}

	classDataOff := len(w.buf)
	w.raw(0, 1, 0, 1) // 0 static fields, 1 instance field, 0 direct, 1 virtual
	w.raw(0, 2)       // field: idx diff 0, flags private
	codePatch := len(w.buf) + 2
	w.raw(0, 1, 0, 0) // method: idx diff 0, flags public, code_off (2 byte uleb, patched)
	w.patch32(classDefsOff+24, uint32(classDataOff))

	codeOff := len(w.buf)
	if codeOff < 0x80 || codeOff >= 0x4000 {
		// Two-byte uleb128 patch below relies on an offset in [0x80, 0x4000).
		panic("fixture grew past two-byte uleb128 range")
	}
	w.buf[codePatch] = byte(codeOff) | 0x80
	w.buf[codePatch+1] = byte(codeOff >> 7)
	w.u16(2) // registers_size
	w.u16(1) // ins_size
	w.u16(0) // outs_size
	w.u16(0) // tries_size
	w.u32(0) // debug_info_off
	w.u32(3) // insns_size
	w.raw(0, 0, 0, 0, 0, 0) // insns

	mapOff := len(w.buf)
	w.u32(2)
	w.u16(0x0000) // header_item
	w.u16(0)
	w.u32(1)
	w.u32(0)
	w.u16(0x2000) // class_data_item
	w.u16(0)
	w.u32(1)
	w.u32(uint32(classDataOff))

	// Patch the header.
	w.patch32(8, 0xdeadbeef) // checksum, unchecked
	w.patch32(0x20, uint32(len(w.buf)))
	w.patch32(0x24, 0x70)       // header_size
	w.patch32(0x28, 0x12345678) // endian_tag
	w.patch32(0x34, uint32(mapOff))
	w.patch32(0x38, uint32(len(stringDataOffs)))
	w.patch32(0x3c, uint32(stringIDsOff))
	w.patch32(0x40, 1)
	w.patch32(0x44, uint32(typeIDsOff))
	w.patch32(0x48, 1)
	w.patch32(0x4c, uint32(protoIDsOff))
	w.patch32(0x50, 1)
	w.patch32(0x54, uint32(fieldIDsOff))
	w.patch32(0x58, 1)
	w.patch32(0x5c, uint32(methodIDsOff))
	w.patch32(0x60, 1)
	w.patch32(0x64, uint32(classDefsOff))

	return w.buf
}

func TestParseRectDex(t *testing.T) {
	f, err := Parse(buildRectDex())
	require.NoError(t, err)

	assert.Equal(t, "035", f.Header.Version)
	assert.Equal(t, uint32(0xdeadbeef), f.Header.Checksum)

	require.Len(t, f.Strings, 3)
	assert.Equal(t, []string{"LRect;", "width", "D"}, f.Strings)

	require.Len(t, f.TypeIDs, 1)
	assert.Equal(t, "LRect;", f.TypeDescriptor(0))

	require.Len(t, f.FieldIDs, 1)
	assert.Equal(t, "width", f.FieldName(0))

	require.Len(t, f.ClassDefs, 1)
	cd := f.ClassDefs[0]
	assert.Equal(t, uint32(NoIndex), cd.SuperclassIdx)
	require.NotNil(t, cd.Data)
	require.Len(t, cd.Data.InstanceFields, 1)
	assert.Equal(t, uint32(0), cd.Data.InstanceFields[0].FieldIdx)
	assert.Equal(t, uint32(2), cd.Data.InstanceFields[0].Flags)

	require.Len(t, cd.Data.VirtualMethods, 1)
	vm := cd.Data.VirtualMethods[0]
	require.NotNil(t, vm.Code)
	assert.Equal(t, uint16(2), vm.Code.RegistersSize)
	assert.Equal(t, uint32(3), vm.Code.InsnsSize)

	require.Len(t, f.MapList, 2)
	assert.Equal(t, "header_item", f.MapList[0].TypeName())
	assert.Equal(t, "class_data_item", f.MapList[1].TypeName())
}

func TestParseDexBadMagic(t *testing.T) {
	data := make([]byte, 0x70)
	copy(data, "dey\n035\x00")
	_, err := Parse(data)
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestParseDexTooSmall(t *testing.T) {
	_, err := Parse([]byte("dex\n035\x00"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too small")
}

func TestParseDexBadEndianTag(t *testing.T) {
	data := buildRectDex()
	// Flip the endian tag to the byte-swapped constant.
	data[0x28] = 0x12
	data[0x29] = 0x34
	data[0x2a] = 0x56
	data[0x2b] = 0x78
	_, err := Parse(data)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endian_tag")
}

func TestParseDexOversizedSectionCounts(t *testing.T) {
	// Header-only files whose section counts or offsets cannot fit in the
	// file must fail the up-front bounds check, before any allocation.
	patch := func(sizeOff int, size uint32, offOff int, off uint32) []byte {
		data := make([]byte, 0x70)
		copy(data, "dex\n035\x00")
		w := &dexWriter{buf: data}
		w.patch32(0x28, 0x12345678) // endian_tag
		w.patch32(sizeOff, size)
		w.patch32(offOff, off)
		return w.buf
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"string_ids count", patch(0x38, 0xFFFFFFFF, 0x3c, 0x70)},
		{"type_ids count", patch(0x40, 0xFFFFFFFF, 0x44, 0x70)},
		{"proto_ids count", patch(0x48, 0x10000000, 0x4c, 0x70)},
		{"field_ids count", patch(0x50, 0x20000000, 0x54, 0x70)},
		{"method_ids count", patch(0x58, 0x20000000, 0x5c, 0x70)},
		{"class_defs count", patch(0x60, 0x08000000, 0x64, 0x70)},
		// Large offset plus large count wraps u32 arithmetic back into
		// low file offsets; the int64 check must still reject it.
		{"string_ids wraparound", patch(0x38, 0x40000000, 0x3c, 0xFFFFFFF0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "extend past end of file")
		})
	}
}

func TestParseDexOversizedTypeList(t *testing.T) {
	data := buildRectDex()
	// Point proto #0's parameters_off at a fake type_list whose u32 size
	// claims far more entries than the file holds.
	listOff := len(data)
	w := &dexWriter{buf: data}
	w.u32(0xFFFFFFF0)
	w.patch32(0x20, uint32(len(w.buf))) // file_size

	protoIDsOff := int(uint32(w.buf[0x4c]) | uint32(w.buf[0x4d])<<8 |
		uint32(w.buf[0x4e])<<16 | uint32(w.buf[0x4f])<<24)
	w.patch32(protoIDsOff+8, uint32(listOff))

	_, err := Parse(w.buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "type_list")
}

func TestParseDexOversizedClassData(t *testing.T) {
	data := buildRectDex()
	// Replace class_data_off with a fake class_data whose member counts
	// exceed the remaining bytes.
	cdOff := len(data)
	w := &dexWriter{buf: data}
	w.raw(0xFF, 0xFF, 0xFF, 0xFF, 0x0F) // static_fields_size = 0xffffffff
	w.raw(0, 0, 0)                      // remaining three sizes
	w.patch32(0x20, uint32(len(w.buf))) // file_size

	classDefsOff := int(uint32(w.buf[0x64]) | uint32(w.buf[0x65])<<8 |
		uint32(w.buf[0x66])<<16 | uint32(w.buf[0x67])<<24)
	w.patch32(classDefsOff+24, uint32(cdOff))

	_, err := Parse(w.buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "class_data")
}

func TestParseDexOversizedMapList(t *testing.T) {
	data := buildRectDex()
	mapOff := int(uint32(data[0x34]) | uint32(data[0x35])<<8 |
		uint32(data[0x36])<<16 | uint32(data[0x37])<<24)
	w := &dexWriter{buf: data}
	w.patch32(mapOff, 0xFFFFFFF0) // map list size

	_, err := Parse(w.buf)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map_list")
}

func TestDexDump(t *testing.T) {
	f, err := Parse(buildRectDex())
	require.NoError(t, err)
	dump := f.Dump()
	for _, want := range []string{
		"dex version: 035",
		"#0: LRect;",
		"LRect;.width",
		"LRect; extends none",
		"map_list(2):",
		"header_item size=1 offset=0",
	} {
		assert.Contains(t, dump, want)
	}
}

func TestUleb128(t *testing.T) {
	tests := []struct {
		in   []byte
		want uint32
		n    int
	}{
		{[]byte{0x00}, 0, 1},
		{[]byte{0x7f}, 127, 1},
		{[]byte{0x80, 0x01}, 128, 2},
		{[]byte{0xb4, 0x07}, 948, 2},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff, 5},
	}
	for _, tt := range tests {
		got, n, err := uleb128(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, tt.n, n)
	}

	_, _, err := uleb128([]byte{0x80, 0x80})
	assert.Error(t, err, "continuation bit with no terminator")
	_, _, err = uleb128([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	assert.Error(t, err, "over-long encoding")
}

func TestDecodeMUTF8EmbeddedNul(t *testing.T) {
	got, err := decodeMUTF8([]byte{'a', 0xC0, 0x80, 'b'})
	require.NoError(t, err)
	assert.Equal(t, "a\x00b", got)
}
