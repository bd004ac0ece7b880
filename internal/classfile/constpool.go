package classfile

import (
	"fmt"
	"math"
)

// Constant pool tags, JVMS §4.4.
const (
	TagUtf8               = 1
	TagInteger            = 3
	TagFloat              = 4
	TagLong               = 5
	TagDouble             = 6
	TagClass              = 7
	TagString             = 8
	TagFieldref           = 9
	TagMethodref          = 10
	TagInterfaceMethodref = 11
	TagNameAndType        = 12
	TagMethodHandle       = 15
	TagMethodType         = 16
	TagInvokeDynamic      = 18
)

// Constant is one constant pool entry. Only the fields relevant to the tag
// are populated. Tag 0 marks the unused slot 0 and the placeholder slot that
// follows every Long and Double entry.
type Constant struct {
	Tag uint8

	Utf8   string
	Int    int32
	Float  float32
	Long   int64
	Double float64

	// Index operands; meaning depends on Tag.
	NameIndex     uint16 // Class, NameAndType
	StringIndex   uint16 // String
	ClassIndex    uint16 // Fieldref, Methodref, InterfaceMethodref
	NameTypeIndex uint16 // Fieldref, Methodref, InterfaceMethodref, InvokeDynamic
	DescIndex     uint16 // NameAndType, MethodType
	RefKind       uint8  // MethodHandle
	RefIndex      uint16 // MethodHandle
	BootstrapIdx  uint16 // InvokeDynamic
}

// Wide reports whether the entry occupies two pool slots.
func (c Constant) Wide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

func (c Constant) String() string {
	switch c.Tag {
	case TagUtf8:
		return fmt.Sprintf("Utf8: %s", c.Utf8)
	case TagInteger:
		return fmt.Sprintf("Integer: %d", c.Int)
	case TagFloat:
		return fmt.Sprintf("Float: %v", c.Float)
	case TagLong:
		return fmt.Sprintf("Long: %d", c.Long)
	case TagDouble:
		return fmt.Sprintf("Double: %v", c.Double)
	case TagClass:
		return fmt.Sprintf("Class: %d", c.NameIndex)
	case TagString:
		return fmt.Sprintf("String: %d", c.StringIndex)
	case TagFieldref:
		return fmt.Sprintf("Fieldref: class: %d, name_and_type: %d", c.ClassIndex, c.NameTypeIndex)
	case TagMethodref:
		return fmt.Sprintf("Methodref: class: %d, name_and_type: %d", c.ClassIndex, c.NameTypeIndex)
	case TagInterfaceMethodref:
		return fmt.Sprintf("InterfaceMethodref: class: %d, name_and_type: %d", c.ClassIndex, c.NameTypeIndex)
	case TagNameAndType:
		return fmt.Sprintf("NameAndType: name: %d, descriptor: %d", c.NameIndex, c.DescIndex)
	case TagMethodHandle:
		return fmt.Sprintf("MethodHandle: reference_kind: %d, reference_index: %d", c.RefKind, c.RefIndex)
	case TagMethodType:
		return fmt.Sprintf("MethodType: %d", c.DescIndex)
	case TagInvokeDynamic:
		return fmt.Sprintf("InvokeDynamic: bootstrap_method_attr: %d, name_and_type: %d", c.BootstrapIdx, c.NameTypeIndex)
	default:
		return "__placeholder__"
	}
}

// ConstPool is the constant pool with JVMS numbering: valid entries start at
// index 1, and entry 0 is a tag-0 placeholder.
type ConstPool []Constant

// Utf8 resolves a CONSTANT_Utf8 entry by pool index.
func (p ConstPool) Utf8(index uint16) (string, error) {
	c, err := p.at(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagUtf8 {
		return "", fmt.Errorf("constant #%d is tag %d, not Utf8", index, c.Tag)
	}
	return c.Utf8, nil
}

// ClassName resolves a CONSTANT_Class entry to its binary name.
func (p ConstPool) ClassName(index uint16) (string, error) {
	c, err := p.at(index)
	if err != nil {
		return "", err
	}
	if c.Tag != TagClass {
		return "", fmt.Errorf("constant #%d is tag %d, not Class", index, c.Tag)
	}
	return p.Utf8(c.NameIndex)
}

func (p ConstPool) at(index uint16) (Constant, error) {
	if index == 0 || int(index) >= len(p) {
		return Constant{}, fmt.Errorf("constant pool index %d out of range (pool size %d)", index, len(p))
	}
	return p[index], nil
}

func parseConstPool(r *reader) (ConstPool, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("constant pool count is zero")
	}

	pool := make(ConstPool, 1, count)
	// Long and Double take two slots, so the loop tracks the slot index, not
	// the number of parsed entries.
	for slot := uint16(1); slot < count; {
		c, err := parseConstant(r)
		if err != nil {
			return nil, fmt.Errorf("constant #%d: %w", slot, err)
		}
		pool = append(pool, c)
		if c.Wide() {
			pool = append(pool, Constant{})
			slot += 2
		} else {
			slot++
		}
	}
	return pool, nil
}

func parseConstant(r *reader) (Constant, error) {
	tag, err := r.u8()
	if err != nil {
		return Constant{}, err
	}
	c := Constant{Tag: tag}
	switch tag {
	case TagUtf8:
		length, err := r.u16()
		if err != nil {
			return c, err
		}
		raw, err := r.bytes(int(length))
		if err != nil {
			return c, err
		}
		c.Utf8, err = decodeMUTF8(raw)
		if err != nil {
			return c, err
		}
	case TagInteger:
		v, err := r.u32()
		if err != nil {
			return c, err
		}
		c.Int = int32(v)
	case TagFloat:
		v, err := r.u32()
		if err != nil {
			return c, err
		}
		c.Float = math.Float32frombits(v)
	case TagLong:
		v, err := r.u64()
		if err != nil {
			return c, err
		}
		c.Long = int64(v)
	case TagDouble:
		v, err := r.u64()
		if err != nil {
			return c, err
		}
		c.Double = math.Float64frombits(v)
	case TagClass:
		if c.NameIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagString:
		if c.StringIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagFieldref, TagMethodref, TagInterfaceMethodref:
		if c.ClassIndex, err = r.u16(); err != nil {
			return c, err
		}
		if c.NameTypeIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagNameAndType:
		if c.NameIndex, err = r.u16(); err != nil {
			return c, err
		}
		if c.DescIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagMethodHandle:
		if c.RefKind, err = r.u8(); err != nil {
			return c, err
		}
		if c.RefIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagMethodType:
		if c.DescIndex, err = r.u16(); err != nil {
			return c, err
		}
	case TagInvokeDynamic:
		if c.BootstrapIdx, err = r.u16(); err != nil {
			return c, err
		}
		if c.NameTypeIndex, err = r.u16(); err != nil {
			return c, err
		}
	default:
		// An unrecognized tag means the stream offset is already wrong;
		// continuing would misparse everything after it.
		return c, fmt.Errorf("unknown constant pool tag %d", tag)
	}
	return c, nil
}

// decodeMUTF8 decodes the JVM's modified UTF-8: embedded NUL is 0xC0 0x80 and
// supplementary characters are stored as surrogate pairs of 3-byte sequences.
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
			// Combine a high/low surrogate pair into one code point.
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
