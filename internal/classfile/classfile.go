// Package classfile parses compiled JVM .class files, JVMS chapter 4.
// Parsing is strict about structure (bad magic, unknown constant tags and
// truncation are errors) but keeps unrecognized attributes as raw bytes so
// newer files still load.
package classfile

import (
	"errors"
	"fmt"
	"strings"
)

// Magic is the classfile signature word.
const Magic = 0xCAFEBABE

// ErrBadMagic reports input that is not a classfile at all.
var ErrBadMagic = errors.New("magic number is not 0xCAFEBABE")

// ClassFile is the parsed class_file structure.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	ConstPool    ConstPool
	Flags        AccessFlags
	ThisClass    uint16
	SuperClass   uint16
	Interfaces   []uint16
	Fields       []Field
	Methods      []Method
	Attributes   []Attribute
}

// Parse decodes a full classfile from raw bytes.
func Parse(data []byte) (*ClassFile, error) {
	r := newReader(data)

	magic, err := r.u32()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w (got 0x%08X)", ErrBadMagic, magic)
	}

	cf := &ClassFile{}
	if cf.MinorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = r.u16(); err != nil {
		return nil, err
	}
	if cf.ConstPool, err = parseConstPool(r); err != nil {
		return nil, fmt.Errorf("constant pool: %w", err)
	}

	flags, err := r.u16()
	if err != nil {
		return nil, err
	}
	cf.Flags = AccessFlags(flags)
	if cf.ThisClass, err = r.u16(); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = r.u16(); err != nil {
		return nil, err
	}

	ifaceCount, err := r.u16()
	if err != nil {
		return nil, err
	}
	cf.Interfaces = make([]uint16, 0, ifaceCount)
	for i := 0; i < int(ifaceCount); i++ {
		idx, err := r.u16()
		if err != nil {
			return nil, err
		}
		cf.Interfaces = append(cf.Interfaces, idx)
	}

	if cf.Fields, err = parseFields(r, cf.ConstPool); err != nil {
		return nil, err
	}
	if cf.Methods, err = parseMethods(r, cf.ConstPool); err != nil {
		return nil, err
	}
	if cf.Attributes, err = parseAttributes(r, cf.ConstPool); err != nil {
		return nil, fmt.Errorf("class attributes: %w", err)
	}
	return cf, nil
}

// ThisClassName resolves the class's own binary name.
func (cf *ClassFile) ThisClassName() string {
	name, err := cf.ConstPool.ClassName(cf.ThisClass)
	if err != nil {
		return "Unknown"
	}
	return name
}

// SuperClassName resolves the superclass name; empty for java/lang/Object
// itself (super_class index 0).
func (cf *ClassFile) SuperClassName() string {
	if cf.SuperClass == 0 {
		return ""
	}
	name, err := cf.ConstPool.ClassName(cf.SuperClass)
	if err != nil {
		return "Unknown"
	}
	return name
}

// SourceFileName returns the SourceFile attribute value, or "Unknown".
func (cf *ClassFile) SourceFileName() string {
	for _, a := range cf.Attributes {
		if a.SourceFile != nil {
			return a.SourceFile.FileName
		}
	}
	return "Unknown"
}

// InterfaceNames resolves the implemented interface names.
func (cf *ClassFile) InterfaceNames() []string {
	names := make([]string, 0, len(cf.Interfaces))
	for _, idx := range cf.Interfaces {
		name, err := cf.ConstPool.ClassName(idx)
		if err != nil {
			name = "Unknown"
		}
		names = append(names, name)
	}
	return names
}

// FieldName resolves a field's name from the pool.
func (cf *ClassFile) FieldName(f Field) string {
	name, err := cf.ConstPool.Utf8(f.NameIndex)
	if err != nil {
		return "Unknown"
	}
	return name
}

// FieldDescriptor resolves a field's raw descriptor string.
func (cf *ClassFile) FieldDescriptor(f Field) string {
	desc, err := cf.ConstPool.Utf8(f.DescIndex)
	if err != nil {
		return "?"
	}
	return desc
}

// MethodName resolves a method's name from the pool.
func (cf *ClassFile) MethodName(m Method) string {
	name, err := cf.ConstPool.Utf8(m.NameIndex)
	if err != nil {
		return "Unknown"
	}
	return name
}

// MethodDescriptor resolves a method's raw descriptor string.
func (cf *ClassFile) MethodDescriptor(m Method) string {
	desc, err := cf.ConstPool.Utf8(m.DescIndex)
	if err != nil {
		return "?"
	}
	return desc
}

// FindMethod returns the first method with the given name, or false.
func (cf *ClassFile) FindMethod(name string) (Method, bool) {
	for _, m := range cf.Methods {
		if cf.MethodName(m) == name {
			return m, true
		}
	}
	return Method{}, false
}

// Version renders "major.minor", the original dump order.
func (cf *ClassFile) Version() string {
	return fmt.Sprintf("%d.%d", cf.MajorVersion, cf.MinorVersion)
}

// Dump renders the full textual dump: header, constant pool, hierarchy,
// members and attributes, one section per line group.
func (cf *ClassFile) Dump() string {
	var b strings.Builder
	fmt.Fprintf(&b, "magic: 0x%08X\n", uint32(Magic))
	fmt.Fprintf(&b, "version: %s\n", cf.Version())
	fmt.Fprintf(&b, "access_flags: %s\n", cf.Flags.ClassString())
	fmt.Fprintf(&b, "const pool(%d):\n", len(cf.ConstPool))
	for i := 1; i < len(cf.ConstPool); i++ {
		fmt.Fprintf(&b, "\t#%d: %s\n", i, cf.ConstPool[i])
	}
	fmt.Fprintf(&b, "this class: %s\n", cf.ThisClassName())
	fmt.Fprintf(&b, "super class: %s\n", cf.SuperClassName())
	fmt.Fprintf(&b, "interfaces(%d):\n", len(cf.Interfaces))
	for _, name := range cf.InterfaceNames() {
		fmt.Fprintf(&b, "\t%s\n", name)
	}
	fmt.Fprintf(&b, "fields(%d):\n", len(cf.Fields))
	for _, f := range cf.Fields {
		fmt.Fprintf(&b, "\t%s %s %s", f.Flags.FieldString(), FieldType(cf.FieldDescriptor(f)), cf.FieldName(f))
		for _, a := range f.Attributes {
			fmt.Fprintf(&b, " %s", a)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "methods(%d):\n", len(cf.Methods))
	for _, m := range cf.Methods {
		fmt.Fprintf(&b, "\t%s %s %s", m.Flags.MethodString(), cf.MethodName(m), MethodSignature(cf.MethodDescriptor(m)))
		for _, a := range m.Attributes {
			fmt.Fprintf(&b, " %s", a)
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "attributes(%d):\n", len(cf.Attributes))
	for _, a := range cf.Attributes {
		fmt.Fprintf(&b, "\t%s\n", a)
	}
	return b.String()
}
