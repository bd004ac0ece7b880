package classfile

import "fmt"

// Attribute names the parser understands. Anything else is kept as raw bytes.
const (
	AttrCode            = "Code"
	AttrConstantValue   = "ConstantValue"
	AttrStackMapTable   = "StackMapTable"
	AttrLineNumberTable = "LineNumberTable"
	AttrSourceFile      = "SourceFile"
	AttrDeprecated      = "Deprecated"
)

// Attribute is one attribute_info entry. Name is resolved from the pool at
// parse time. Exactly one of the typed fields is set for recognized
// attributes; unrecognized ones keep their payload in Raw.
type Attribute struct {
	NameIndex uint16
	Name      string
	Raw       []byte

	Code          *CodeAttribute
	ConstantValue *ConstantValueAttribute
	SourceFile    *SourceFileAttribute
	LineNumbers   *LineNumberTable
	StackMap      *StackMapTable
	Deprecated    bool
}

func (a Attribute) String() string {
	switch {
	case a.Code != nil:
		return fmt.Sprintf("Code: %s", a.Code)
	case a.ConstantValue != nil:
		return fmt.Sprintf("Constant: %s", a.ConstantValue)
	case a.SourceFile != nil:
		return fmt.Sprintf("SourceFile: %s", a.SourceFile)
	case a.LineNumbers != nil:
		return fmt.Sprintf("LineNumberTable: %s", a.LineNumbers)
	case a.StackMap != nil:
		return fmt.Sprintf("StackMapTable: %s", a.StackMap)
	case a.Deprecated:
		return "Deprecated"
	default:
		return fmt.Sprintf("%s(%d bytes)", a.Name, len(a.Raw))
	}
}

// CodeAttribute holds a method body, JVMS §4.7.3. Code stays raw bytecode;
// the bytecode package disassembles it on demand.
type CodeAttribute struct {
	MaxStack       uint16
	MaxLocals      uint16
	Code           []byte
	ExceptionTable []ExceptionEntry
	Attributes     []Attribute
}

func (c *CodeAttribute) String() string {
	return fmt.Sprintf("{max_stack: %d, max_locals: %d, code_length: %d}",
		c.MaxStack, c.MaxLocals, len(c.Code))
}

// ExceptionEntry is one exception_table row of a Code attribute.
type ExceptionEntry struct {
	StartPC   uint16
	EndPC     uint16
	HandlerPC uint16
	CatchType uint16
}

// ConstantValueAttribute points at the pool constant holding a static
// field's initial value.
type ConstantValueAttribute struct {
	ValueIndex uint16
}

func (c *ConstantValueAttribute) String() string {
	return fmt.Sprintf("{constantvalue_index: %d}", c.ValueIndex)
}

// SourceFileAttribute carries the resolved source file name.
type SourceFileAttribute struct {
	FileIndex uint16
	FileName  string
}

func (s *SourceFileAttribute) String() string {
	return fmt.Sprintf("{sourcefile: %s}", s.FileName)
}

// LineNumberTable maps bytecode offsets to source lines.
type LineNumberTable struct {
	Entries []LineNumberEntry
}

type LineNumberEntry struct {
	StartPC    uint16
	LineNumber uint16
}

func (t *LineNumberTable) String() string {
	s := fmt.Sprintf("line_number_table(%d):", len(t.Entries))
	for _, e := range t.Entries {
		s += fmt.Sprintf(" {start_pc: %d, line_number: %d}", e.StartPC, e.LineNumber)
	}
	return s
}

// StackMapTable, JVMS §4.7.4.
type StackMapTable struct {
	Frames []StackMapFrame
}

func (t *StackMapTable) String() string {
	return fmt.Sprintf("StackMapTable(%d)", len(t.Frames))
}

// Frame kinds derived from the frame_type byte.
type FrameKind int

const (
	FrameSame FrameKind = iota
	FrameSameLocals1Stack
	FrameSameLocals1StackExtended
	FrameChop
	FrameSameExtended
	FrameAppend
	FrameFull
)

type StackMapFrame struct {
	Kind        FrameKind
	FrameType   uint8
	OffsetDelta uint16
	Locals      []VerificationType
	Stack       []VerificationType
}

// Verification type tags, JVMS §4.7.4.
const (
	VTTop uint8 = iota
	VTInteger
	VTFloat
	VTDouble
	VTLong
	VTNull
	VTUninitializedThis
	VTObject
	VTUninitialized
)

type VerificationType struct {
	Tag uint8
	// Pool index for VTObject, bytecode offset for VTUninitialized.
	Index uint16
}

func parseAttributes(r *reader, pool ConstPool) ([]Attribute, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, 0, count)
	for i := 0; i < int(count); i++ {
		attr, err := parseAttribute(r, pool)
		if err != nil {
			return nil, fmt.Errorf("attribute %d: %w", i, err)
		}
		attrs = append(attrs, attr)
	}
	return attrs, nil
}

func parseAttribute(r *reader, pool ConstPool) (Attribute, error) {
	nameIndex, err := r.u16()
	if err != nil {
		return Attribute{}, err
	}
	length, err := r.u32()
	if err != nil {
		return Attribute{}, err
	}
	name, err := pool.Utf8(nameIndex)
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute name: %w", err)
	}
	payload, err := r.bytes(int(length))
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %q: %w", name, err)
	}

	attr := Attribute{NameIndex: nameIndex, Name: name}
	pr := newReader(payload)
	switch name {
	case AttrCode:
		attr.Code, err = parseCode(pr, pool)
	case AttrConstantValue:
		attr.ConstantValue, err = parseConstantValue(pr)
	case AttrSourceFile:
		attr.SourceFile, err = parseSourceFile(pr, pool)
	case AttrLineNumberTable:
		attr.LineNumbers, err = parseLineNumberTable(pr)
	case AttrStackMapTable:
		attr.StackMap, err = parseStackMapTable(pr)
	case AttrDeprecated:
		attr.Deprecated = true
	default:
		attr.Raw = payload
	}
	if err != nil {
		return Attribute{}, fmt.Errorf("attribute %q: %w", name, err)
	}
	return attr, nil
}

func parseCode(r *reader, pool ConstPool) (*CodeAttribute, error) {
	c := &CodeAttribute{}
	var err error
	if c.MaxStack, err = r.u16(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = r.u16(); err != nil {
		return nil, err
	}
	codeLen, err := r.u32()
	if err != nil {
		return nil, err
	}
	if c.Code, err = r.bytes(int(codeLen)); err != nil {
		return nil, err
	}
	excCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	c.ExceptionTable = make([]ExceptionEntry, 0, excCount)
	for i := 0; i < int(excCount); i++ {
		var e ExceptionEntry
		if e.StartPC, err = r.u16(); err != nil {
			return nil, err
		}
		if e.EndPC, err = r.u16(); err != nil {
			return nil, err
		}
		if e.HandlerPC, err = r.u16(); err != nil {
			return nil, err
		}
		if e.CatchType, err = r.u16(); err != nil {
			return nil, err
		}
		c.ExceptionTable = append(c.ExceptionTable, e)
	}
	if c.Attributes, err = parseAttributes(r, pool); err != nil {
		return nil, err
	}
	return c, nil
}

func parseConstantValue(r *reader) (*ConstantValueAttribute, error) {
	idx, err := r.u16()
	if err != nil {
		return nil, err
	}
	return &ConstantValueAttribute{ValueIndex: idx}, nil
}

func parseSourceFile(r *reader, pool ConstPool) (*SourceFileAttribute, error) {
	idx, err := r.u16()
	if err != nil {
		return nil, err
	}
	name, err := pool.Utf8(idx)
	if err != nil {
		return nil, fmt.Errorf("sourcefile name: %w", err)
	}
	return &SourceFileAttribute{FileIndex: idx, FileName: name}, nil
}

func parseLineNumberTable(r *reader) (*LineNumberTable, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	t := &LineNumberTable{Entries: make([]LineNumberEntry, 0, count)}
	for i := 0; i < int(count); i++ {
		var e LineNumberEntry
		if e.StartPC, err = r.u16(); err != nil {
			return nil, err
		}
		if e.LineNumber, err = r.u16(); err != nil {
			return nil, err
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func parseStackMapTable(r *reader) (*StackMapTable, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	t := &StackMapTable{Frames: make([]StackMapFrame, 0, count)}
	for i := 0; i < int(count); i++ {
		frame, err := parseStackMapFrame(r)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		t.Frames = append(t.Frames, frame)
	}
	return t, nil
}

func parseStackMapFrame(r *reader) (StackMapFrame, error) {
	ft, err := r.u8()
	if err != nil {
		return StackMapFrame{}, err
	}
	f := StackMapFrame{FrameType: ft}
	switch {
	case ft <= 63:
		f.Kind = FrameSame
	case ft <= 127:
		f.Kind = FrameSameLocals1Stack
		vt, err := parseVerificationType(r)
		if err != nil {
			return f, err
		}
		f.Stack = []VerificationType{vt}
	case ft < 247:
		return f, fmt.Errorf("reserved frame_type %d", ft)
	case ft == 247:
		f.Kind = FrameSameLocals1StackExtended
		if f.OffsetDelta, err = r.u16(); err != nil {
			return f, err
		}
		vt, err := parseVerificationType(r)
		if err != nil {
			return f, err
		}
		f.Stack = []VerificationType{vt}
	case ft <= 250:
		f.Kind = FrameChop
		if f.OffsetDelta, err = r.u16(); err != nil {
			return f, err
		}
	case ft == 251:
		f.Kind = FrameSameExtended
		if f.OffsetDelta, err = r.u16(); err != nil {
			return f, err
		}
	case ft <= 254:
		f.Kind = FrameAppend
		if f.OffsetDelta, err = r.u16(); err != nil {
			return f, err
		}
		n := int(ft) - 251
		f.Locals = make([]VerificationType, 0, n)
		for i := 0; i < n; i++ {
			vt, err := parseVerificationType(r)
			if err != nil {
				return f, err
			}
			f.Locals = append(f.Locals, vt)
		}
	default: // 255
		f.Kind = FrameFull
		if f.OffsetDelta, err = r.u16(); err != nil {
			return f, err
		}
		nLocals, err := r.u16()
		if err != nil {
			return f, err
		}
		f.Locals = make([]VerificationType, 0, nLocals)
		for i := 0; i < int(nLocals); i++ {
			vt, err := parseVerificationType(r)
			if err != nil {
				return f, err
			}
			f.Locals = append(f.Locals, vt)
		}
		nStack, err := r.u16()
		if err != nil {
			return f, err
		}
		f.Stack = make([]VerificationType, 0, nStack)
		for i := 0; i < int(nStack); i++ {
			vt, err := parseVerificationType(r)
			if err != nil {
				return f, err
			}
			f.Stack = append(f.Stack, vt)
		}
	}
	return f, nil
}

func parseVerificationType(r *reader) (VerificationType, error) {
	tag, err := r.u8()
	if err != nil {
		return VerificationType{}, err
	}
	vt := VerificationType{Tag: tag}
	if tag > VTUninitialized {
		return vt, fmt.Errorf("invalid verification type tag %d", tag)
	}
	if tag == VTObject || tag == VTUninitialized {
		if vt.Index, err = r.u16(); err != nil {
			return vt, err
		}
	}
	return vt, nil
}
