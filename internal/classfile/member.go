package classfile

import "fmt"

// Field is one field_info entry.
type Field struct {
	Flags      AccessFlags
	NameIndex  uint16
	DescIndex  uint16
	Attributes []Attribute
}

// Method is one method_info entry. The layout is identical to field_info but
// the flag meanings and the interesting attributes (Code) differ.
type Method struct {
	Flags      AccessFlags
	NameIndex  uint16
	DescIndex  uint16
	Attributes []Attribute
}

// CodeAttr returns the method's Code attribute, or nil for abstract and
// native methods.
func (m Method) CodeAttr() *CodeAttribute {
	for _, a := range m.Attributes {
		if a.Code != nil {
			return a.Code
		}
	}
	return nil
}

func parseFields(r *reader, pool ConstPool) ([]Field, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	fields := make([]Field, 0, count)
	for i := 0; i < int(count); i++ {
		flags, nameIdx, descIdx, attrs, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		fields = append(fields, Field{Flags: flags, NameIndex: nameIdx, DescIndex: descIdx, Attributes: attrs})
	}
	return fields, nil
}

func parseMethods(r *reader, pool ConstPool) ([]Method, error) {
	count, err := r.u16()
	if err != nil {
		return nil, err
	}
	methods := make([]Method, 0, count)
	for i := 0; i < int(count); i++ {
		flags, nameIdx, descIdx, attrs, err := parseMember(r, pool)
		if err != nil {
			return nil, fmt.Errorf("method %d: %w", i, err)
		}
		methods = append(methods, Method{Flags: flags, NameIndex: nameIdx, DescIndex: descIdx, Attributes: attrs})
	}
	return methods, nil
}

func parseMember(r *reader, pool ConstPool) (AccessFlags, uint16, uint16, []Attribute, error) {
	flags, err := r.u16()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	nameIdx, err := r.u16()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	descIdx, err := r.u16()
	if err != nil {
		return 0, 0, 0, nil, err
	}
	attrs, err := parseAttributes(r, pool)
	if err != nil {
		return 0, 0, 0, nil, err
	}
	return AccessFlags(flags), nameIdx, descIdx, attrs, nil
}
