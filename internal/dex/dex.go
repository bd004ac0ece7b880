// Package dex parses Android DEX file headers and index sections.
// The format is little-endian with absolute offsets into the file, so the
// parser keeps the whole input around and follows offsets from the header
// rather than reading linearly.
package dex

import (
	"errors"
	"fmt"
	"strings"
)

// NoIndex marks an absent index field (dex spec NO_INDEX).
const NoIndex = 0xffffffff

// ErrBadMagic reports input that does not start with the dex magic.
var ErrBadMagic = errors.New(`magic is not "dex\n"`)

// Header is the dex_header item.
type Header struct {
	Version    string
	Checksum   uint32
	Signature  [20]byte
	FileSize   uint32
	HeaderSize uint32
	EndianTag  uint32
	LinkSize   uint32
	LinkOff    uint32
	MapOff     uint32

	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

// ProtoID is one proto_id_item with its parameter list resolved.
type ProtoID struct {
	ShortyIdx     uint32
	ReturnTypeIdx uint32
	ParametersOff uint32
	Parameters    []uint32 // type_idx list, nil when parameters_off is 0
}

// FieldID is one field_id_item.
type FieldID struct {
	ClassIdx uint16
	TypeIdx  uint16
	NameIdx  uint32
}

// MethodID is one method_id_item.
type MethodID struct {
	ClassIdx uint16
	ProtoIdx uint16
	NameIdx  uint32
}

// ClassDef is one class_def_item with its class_data resolved.
type ClassDef struct {
	ClassIdx        uint32
	Flags           uint32
	SuperclassIdx   uint32 // NoIndex when absent
	InterfacesOff   uint32
	Interfaces      []uint32 // type_idx list
	SourceFileIdx   uint32   // NoIndex when absent
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
	Data            *ClassData
}

// ClassData is the decoded class_data_item.
type ClassData struct {
	StaticFields   []EncodedField
	InstanceFields []EncodedField
	DirectMethods  []EncodedMethod
	VirtualMethods []EncodedMethod
}

// EncodedField has its index diff already accumulated to an absolute
// field_ids index.
type EncodedField struct {
	FieldIdx uint32
	Flags    uint32
}

// EncodedMethod has its index diff accumulated; Code is nil for abstract
// and native methods (code_off 0).
type EncodedMethod struct {
	MethodIdx uint32
	Flags     uint32
	CodeOff   uint32
	Code      *CodeItem
}

// CodeItem is the fixed part of a code_item; instructions stay undecoded.
type CodeItem struct {
	RegistersSize uint16
	InsSize       uint16
	OutsSize      uint16
	TriesSize     uint16
	DebugInfoOff  uint32
	InsnsSize     uint32
}

// MapItem is one map_list entry.
type MapItem struct {
	Type   uint16
	Size   uint32
	Offset uint32
}

// File is a parsed DEX file.
type File struct {
	Header    Header
	Strings   []string
	TypeIDs   []uint32 // descriptor string indices
	ProtoIDs  []ProtoID
	FieldIDs  []FieldID
	MethodIDs []MethodID
	ClassDefs []ClassDef
	MapList   []MapItem
}

// Parse decodes a whole DEX file from raw bytes.
func Parse(data []byte) (*File, error) {
	hdr, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if err := hdr.checkSections(len(data)); err != nil {
		return nil, err
	}
	f := &File{Header: *hdr}

	if err := f.parseStrings(data); err != nil {
		return nil, fmt.Errorf("string_ids: %w", err)
	}
	if err := f.parseTypeIDs(data); err != nil {
		return nil, fmt.Errorf("type_ids: %w", err)
	}
	if err := f.parseProtoIDs(data); err != nil {
		return nil, fmt.Errorf("proto_ids: %w", err)
	}
	if err := f.parseFieldIDs(data); err != nil {
		return nil, fmt.Errorf("field_ids: %w", err)
	}
	if err := f.parseMethodIDs(data); err != nil {
		return nil, fmt.Errorf("method_ids: %w", err)
	}
	if err := f.parseClassDefs(data); err != nil {
		return nil, fmt.Errorf("class_defs: %w", err)
	}
	if err := f.parseMapList(data); err != nil {
		return nil, fmt.Errorf("map_list: %w", err)
	}
	return f, nil
}

func le16(data []byte, off uint32) (uint16, error) {
	if int(off)+2 > len(data) {
		return 0, fmt.Errorf("truncated at offset %d", off)
	}
	return uint16(data[off]) | uint16(data[off+1])<<8, nil
}

func le32(data []byte, off uint32) (uint32, error) {
	if int(off)+4 > len(data) {
		return 0, fmt.Errorf("truncated at offset %d", off)
	}
	return uint32(data[off]) | uint32(data[off+1])<<8 |
		uint32(data[off+2])<<16 | uint32(data[off+3])<<24, nil
}

func parseHeader(data []byte) (*Header, error) {
	if len(data) < 0x70 {
		return nil, fmt.Errorf("file too small for dex header (%d bytes)", len(data))
	}
	if string(data[0:4]) != "dex\n" {
		return nil, fmt.Errorf("%w (got % x)", ErrBadMagic, data[0:4])
	}
	if data[7] != 0 {
		return nil, fmt.Errorf("dex version not NUL-terminated")
	}

	h := &Header{Version: string(data[4:7])}
	copy(h.Signature[:], data[12:32])

	var err error
	if h.Checksum, err = le32(data, 8); err != nil {
		return nil, err
	}
	off := uint32(32)
	for _, dst := range []*uint32{
		&h.FileSize, &h.HeaderSize, &h.EndianTag, &h.LinkSize, &h.LinkOff, &h.MapOff,
		&h.StringIDsSize, &h.StringIDsOff, &h.TypeIDsSize, &h.TypeIDsOff,
		&h.ProtoIDsSize, &h.ProtoIDsOff, &h.FieldIDsSize, &h.FieldIDsOff,
		&h.MethodIDsSize, &h.MethodIDsOff, &h.ClassDefsSize, &h.ClassDefsOff,
		&h.DataSize, &h.DataOff,
	} {
		v, err := le32(data, off)
		if err != nil {
			return nil, err
		}
		*dst = v
		off += 4
	}
	// Byte-swapped files (REVERSE_ENDIAN_CONSTANT) are not supported.
	if h.EndianTag != 0x12345678 {
		return nil, fmt.Errorf("unsupported endian_tag 0x%08x", h.EndianTag)
	}
	return h, nil
}

// checkSections verifies that every fixed-width index section the header
// describes fits inside the file. Counts and offsets come straight from
// untrusted input, so this runs in int64 before anything allocates from a
// count or does u32 offset arithmetic that could wrap.
func (h *Header) checkSections(fileLen int) error {
	sections := []struct {
		name     string
		off, n   uint32
		itemSize int64
	}{
		{"string_ids", h.StringIDsOff, h.StringIDsSize, 4},
		{"type_ids", h.TypeIDsOff, h.TypeIDsSize, 4},
		{"proto_ids", h.ProtoIDsOff, h.ProtoIDsSize, 12},
		{"field_ids", h.FieldIDsOff, h.FieldIDsSize, 8},
		{"method_ids", h.MethodIDsOff, h.MethodIDsSize, 8},
		{"class_defs", h.ClassDefsOff, h.ClassDefsSize, 32},
	}
	for _, s := range sections {
		if s.n == 0 {
			continue
		}
		if end := int64(s.off) + s.itemSize*int64(s.n); end > int64(fileLen) {
			return fmt.Errorf("%s: %d items at offset %d extend past end of file (%d bytes)",
				s.name, s.n, s.off, fileLen)
		}
	}
	return nil
}

func (f *File) parseStrings(data []byte) error {
	f.Strings = make([]string, 0, f.Header.StringIDsSize)
	for i := uint32(0); i < f.Header.StringIDsSize; i++ {
		dataOff, err := le32(data, f.Header.StringIDsOff+4*i)
		if err != nil {
			return err
		}
		if int(dataOff) >= len(data) {
			return fmt.Errorf("string %d: data offset %d out of range", i, dataOff)
		}
		// string_data_item: uleb128 utf16 length, then MUTF-8 bytes to NUL.
		_, n, err := uleb128(data[dataOff:])
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		start := int(dataOff) + n
		end := start
		for end < len(data) && data[end] != 0 {
			end++
		}
		if end == len(data) {
			return fmt.Errorf("string %d: unterminated string data", i)
		}
		s, err := decodeMUTF8(data[start:end])
		if err != nil {
			return fmt.Errorf("string %d: %w", i, err)
		}
		f.Strings = append(f.Strings, s)
	}
	return nil
}

func (f *File) parseTypeIDs(data []byte) error {
	f.TypeIDs = make([]uint32, 0, f.Header.TypeIDsSize)
	for i := uint32(0); i < f.Header.TypeIDsSize; i++ {
		idx, err := le32(data, f.Header.TypeIDsOff+4*i)
		if err != nil {
			return err
		}
		f.TypeIDs = append(f.TypeIDs, idx)
	}
	return nil
}

func (f *File) parseProtoIDs(data []byte) error {
	f.ProtoIDs = make([]ProtoID, 0, f.Header.ProtoIDsSize)
	for i := uint32(0); i < f.Header.ProtoIDsSize; i++ {
		base := f.Header.ProtoIDsOff + 12*i
		var p ProtoID
		var err error
		if p.ShortyIdx, err = le32(data, base); err != nil {
			return err
		}
		if p.ReturnTypeIdx, err = le32(data, base+4); err != nil {
			return err
		}
		if p.ParametersOff, err = le32(data, base+8); err != nil {
			return err
		}
		if p.ParametersOff != 0 {
			if p.Parameters, err = parseTypeList(data, p.ParametersOff); err != nil {
				return fmt.Errorf("proto %d parameters: %w", i, err)
			}
		}
		f.ProtoIDs = append(f.ProtoIDs, p)
	}
	return nil
}

// parseTypeList reads a type_list: u32 size then u16 type indices.
func parseTypeList(data []byte, off uint32) ([]uint32, error) {
	size, err := le32(data, off)
	if err != nil {
		return nil, err
	}
	if end := int64(off) + 4 + 2*int64(size); end > int64(len(data)) {
		return nil, fmt.Errorf("type_list: %d entries at offset %d extend past end of file", size, off)
	}
	list := make([]uint32, 0, size)
	for i := uint32(0); i < size; i++ {
		idx, err := le16(data, off+4+2*i)
		if err != nil {
			return nil, err
		}
		list = append(list, uint32(idx))
	}
	return list, nil
}

func (f *File) parseFieldIDs(data []byte) error {
	f.FieldIDs = make([]FieldID, 0, f.Header.FieldIDsSize)
	for i := uint32(0); i < f.Header.FieldIDsSize; i++ {
		base := f.Header.FieldIDsOff + 8*i
		var fid FieldID
		var err error
		if fid.ClassIdx, err = le16(data, base); err != nil {
			return err
		}
		if fid.TypeIdx, err = le16(data, base+2); err != nil {
			return err
		}
		if fid.NameIdx, err = le32(data, base+4); err != nil {
			return err
		}
		f.FieldIDs = append(f.FieldIDs, fid)
	}
	return nil
}

func (f *File) parseMethodIDs(data []byte) error {
	f.MethodIDs = make([]MethodID, 0, f.Header.MethodIDsSize)
	for i := uint32(0); i < f.Header.MethodIDsSize; i++ {
		base := f.Header.MethodIDsOff + 8*i
		var mid MethodID
		var err error
		if mid.ClassIdx, err = le16(data, base); err != nil {
			return err
		}
		if mid.ProtoIdx, err = le16(data, base+2); err != nil {
			return err
		}
		if mid.NameIdx, err = le32(data, base+4); err != nil {
			return err
		}
		f.MethodIDs = append(f.MethodIDs, mid)
	}
	return nil
}

func (f *File) parseClassDefs(data []byte) error {
	f.ClassDefs = make([]ClassDef, 0, f.Header.ClassDefsSize)
	for i := uint32(0); i < f.Header.ClassDefsSize; i++ {
		base := f.Header.ClassDefsOff + 32*i
		var cd ClassDef
		var err error
		for j, dst := range []*uint32{
			&cd.ClassIdx, &cd.Flags, &cd.SuperclassIdx, &cd.InterfacesOff,
			&cd.SourceFileIdx, &cd.AnnotationsOff, &cd.ClassDataOff, &cd.StaticValuesOff,
		} {
			v, err := le32(data, base+4*uint32(j))
			if err != nil {
				return err
			}
			*dst = v
		}
		if cd.InterfacesOff != 0 {
			if cd.Interfaces, err = parseTypeList(data, cd.InterfacesOff); err != nil {
				return fmt.Errorf("class %d interfaces: %w", i, err)
			}
		}
		if cd.ClassDataOff != 0 {
			if cd.Data, err = parseClassData(data, cd.ClassDataOff); err != nil {
				return fmt.Errorf("class %d data: %w", i, err)
			}
		}
		f.ClassDefs = append(f.ClassDefs, cd)
	}
	return nil
}

func parseClassData(data []byte, off uint32) (*ClassData, error) {
	pos := int(off)
	next := func() (uint32, error) {
		if pos >= len(data) {
			return 0, fmt.Errorf("truncated class_data at %d", pos)
		}
		v, n, err := uleb128(data[pos:])
		if err != nil {
			return 0, err
		}
		pos += n
		return v, nil
	}

	var sizes [4]uint32
	var total int64
	for i := range sizes {
		v, err := next()
		if err != nil {
			return nil, err
		}
		sizes[i] = v
		total += int64(v)
	}
	// Every encoded field or method takes at least two uleb128 bytes, so
	// counts beyond the remaining data are corrupt.
	if total*2 > int64(len(data)-pos) {
		return nil, fmt.Errorf("class_data at %d claims %d members in %d bytes", off, total, len(data)-pos)
	}

	cd := &ClassData{}
	// Field and method indices are delta-encoded against the previous entry.
	readFields := func(n uint32) ([]EncodedField, error) {
		fields := make([]EncodedField, 0, n)
		var idx uint32
		for i := uint32(0); i < n; i++ {
			diff, err := next()
			if err != nil {
				return nil, err
			}
			flags, err := next()
			if err != nil {
				return nil, err
			}
			idx += diff
			fields = append(fields, EncodedField{FieldIdx: idx, Flags: flags})
		}
		return fields, nil
	}
	readMethods := func(n uint32) ([]EncodedMethod, error) {
		methods := make([]EncodedMethod, 0, n)
		var idx uint32
		for i := uint32(0); i < n; i++ {
			diff, err := next()
			if err != nil {
				return nil, err
			}
			flags, err := next()
			if err != nil {
				return nil, err
			}
			codeOff, err := next()
			if err != nil {
				return nil, err
			}
			idx += diff
			m := EncodedMethod{MethodIdx: idx, Flags: flags, CodeOff: codeOff}
			if codeOff != 0 {
				code, err := parseCodeItem(data, codeOff)
				if err != nil {
					return nil, err
				}
				m.Code = code
			}
			methods = append(methods, m)
		}
		return methods, nil
	}

	var err error
	if cd.StaticFields, err = readFields(sizes[0]); err != nil {
		return nil, err
	}
	if cd.InstanceFields, err = readFields(sizes[1]); err != nil {
		return nil, err
	}
	if cd.DirectMethods, err = readMethods(sizes[2]); err != nil {
		return nil, err
	}
	if cd.VirtualMethods, err = readMethods(sizes[3]); err != nil {
		return nil, err
	}
	return cd, nil
}

func parseCodeItem(data []byte, off uint32) (*CodeItem, error) {
	c := &CodeItem{}
	var err error
	if c.RegistersSize, err = le16(data, off); err != nil {
		return nil, err
	}
	if c.InsSize, err = le16(data, off+2); err != nil {
		return nil, err
	}
	if c.OutsSize, err = le16(data, off+4); err != nil {
		return nil, err
	}
	if c.TriesSize, err = le16(data, off+6); err != nil {
		return nil, err
	}
	if c.DebugInfoOff, err = le32(data, off+8); err != nil {
		return nil, err
	}
	if c.InsnsSize, err = le32(data, off+12); err != nil {
		return nil, err
	}
	return c, nil
}

func (f *File) parseMapList(data []byte) error {
	if f.Header.MapOff == 0 {
		return nil
	}
	size, err := le32(data, f.Header.MapOff)
	if err != nil {
		return err
	}
	if end := int64(f.Header.MapOff) + 4 + 12*int64(size); end > int64(len(data)) {
		return fmt.Errorf("%d entries at offset %d extend past end of file", size, f.Header.MapOff)
	}
	f.MapList = make([]MapItem, 0, size)
	for i := uint32(0); i < size; i++ {
		base := f.Header.MapOff + 4 + 12*i
		var item MapItem
		if item.Type, err = le16(data, base); err != nil {
			return err
		}
		// 2 bytes unused padding.
		if item.Size, err = le32(data, base+4); err != nil {
			return err
		}
		if item.Offset, err = le32(data, base+8); err != nil {
			return err
		}
		f.MapList = append(f.MapList, item)
	}
	return nil
}

// String resolves a string_ids index.
func (f *File) String(idx uint32) string {
	if int(idx) >= len(f.Strings) {
		return "Unknown"
	}
	return f.Strings[idx]
}

// TypeDescriptor resolves a type_ids index to its descriptor string.
func (f *File) TypeDescriptor(idx uint32) string {
	if int(idx) >= len(f.TypeIDs) {
		return "Unknown"
	}
	return f.String(f.TypeIDs[idx])
}

// FieldName resolves a field_ids index to the field name.
func (f *File) FieldName(idx uint32) string {
	if int(idx) >= len(f.FieldIDs) {
		return "Unknown"
	}
	return f.String(f.FieldIDs[idx].NameIdx)
}

// MethodName resolves a method_ids index to the method name.
func (f *File) MethodName(idx uint32) string {
	if int(idx) >= len(f.MethodIDs) {
		return "Unknown"
	}
	return f.String(f.MethodIDs[idx].NameIdx)
}

// Map item type codes, dex spec "type codes" table.
var mapItemNames = map[uint16]string{
	0x0000: "header_item",
	0x0001: "string_id_item",
	0x0002: "type_id_item",
	0x0003: "proto_id_item",
	0x0004: "field_id_item",
	0x0005: "method_id_item",
	0x0006: "class_def_item",
	0x0007: "call_site_id_item",
	0x0008: "method_handle_item",
	0x1000: "map_list",
	0x1001: "type_list",
	0x1002: "annotation_set_ref_list",
	0x1003: "annotation_set_item",
	0x2000: "class_data_item",
	0x2001: "code_item",
	0x2002: "string_data_item",
	0x2003: "debug_info_item",
	0x2004: "annotation_item",
	0x2005: "encoded_array_item",
	0x2006: "annotations_directory_item",
}

// TypeName names a map item type code.
func (m MapItem) TypeName() string {
	if name, ok := mapItemNames[m.Type]; ok {
		return name
	}
	return fmt.Sprintf("unknown(0x%04x)", m.Type)
}

// Dump renders the header and index sections as text.
func (f *File) Dump() string {
	var b strings.Builder
	h := f.Header
	fmt.Fprintf(&b, "dex version: %s\n", h.Version)
	fmt.Fprintf(&b, "checksum: 0x%08x\n", h.Checksum)
	fmt.Fprintf(&b, "signature: % x\n", h.Signature)
	fmt.Fprintf(&b, "file_size: %d\n", h.FileSize)
	fmt.Fprintf(&b, "strings(%d):\n", len(f.Strings))
	for i, s := range f.Strings {
		fmt.Fprintf(&b, "\t#%d: %s\n", i, s)
	}
	fmt.Fprintf(&b, "types(%d):\n", len(f.TypeIDs))
	for i := range f.TypeIDs {
		fmt.Fprintf(&b, "\t#%d: %s\n", i, f.TypeDescriptor(uint32(i)))
	}
	fmt.Fprintf(&b, "fields(%d):\n", len(f.FieldIDs))
	for _, fid := range f.FieldIDs {
		fmt.Fprintf(&b, "\t%s %s.%s\n",
			f.TypeDescriptor(uint32(fid.TypeIdx)),
			f.TypeDescriptor(uint32(fid.ClassIdx)),
			f.String(fid.NameIdx))
	}
	fmt.Fprintf(&b, "methods(%d):\n", len(f.MethodIDs))
	for _, mid := range f.MethodIDs {
		fmt.Fprintf(&b, "\t%s.%s\n",
			f.TypeDescriptor(uint32(mid.ClassIdx)),
			f.String(mid.NameIdx))
	}
	fmt.Fprintf(&b, "class_defs(%d):\n", len(f.ClassDefs))
	for _, cd := range f.ClassDefs {
		super := "none"
		if cd.SuperclassIdx != NoIndex {
			super = f.TypeDescriptor(cd.SuperclassIdx)
		}
		fmt.Fprintf(&b, "\t%s extends %s\n", f.TypeDescriptor(cd.ClassIdx), super)
	}
	fmt.Fprintf(&b, "map_list(%d):\n", len(f.MapList))
	for _, m := range f.MapList {
		fmt.Fprintf(&b, "\t%s size=%d offset=%d\n", m.TypeName(), m.Size, m.Offset)
	}
	return b.String()
}
