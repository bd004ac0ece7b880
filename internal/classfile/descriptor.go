package classfile

import "strings"

// FieldType renders a field descriptor as a Java-ish type name:
// "D" -> "double", "[I" -> "int[]", "Ljava/lang/String;" -> "java.lang.String".
// Malformed descriptors come back unchanged.
func FieldType(desc string) string {
	t, rest := readType(desc)
	if t == "" || rest != "" {
		return desc
	}
	return t
}

// MethodSignature renders a method descriptor, e.g. "(DD)V" ->
// "(double, double) -> void".
func MethodSignature(desc string) string {
	if len(desc) == 0 || desc[0] != '(' {
		return desc
	}
	rest := desc[1:]
	var params []string
	for len(rest) > 0 && rest[0] != ')' {
		t, r := readType(rest)
		if t == "" {
			return desc
		}
		params = append(params, t)
		rest = r
	}
	if len(rest) == 0 {
		return desc
	}
	ret, r := readType(rest[1:])
	if ret == "" || r != "" {
		return desc
	}
	return "(" + strings.Join(params, ", ") + ") -> " + ret
}

var baseTypes = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// readType consumes one type from the front of a descriptor and returns the
// rendered name and the remainder. Empty name means malformed input.
func readType(desc string) (string, string) {
	if desc == "" {
		return "", ""
	}
	switch c := desc[0]; c {
	case '[':
		inner, rest := readType(desc[1:])
		if inner == "" {
			return "", ""
		}
		return inner + "[]", rest
	case 'L':
		end := strings.IndexByte(desc, ';')
		if end < 0 {
			return "", ""
		}
		return strings.ReplaceAll(desc[1:end], "/", "."), desc[end+1:]
	default:
		if name, ok := baseTypes[c]; ok {
			return name, desc[1:]
		}
		return "", ""
	}
}
