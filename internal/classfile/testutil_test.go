package classfile

import "math"

// classWriter builds classfile bytes for tests, big-endian like the format.
type classWriter struct {
	buf []byte
}

func (w *classWriter) u8(v uint8)   { w.buf = append(w.buf, v) }
func (w *classWriter) u16(v uint16) { w.buf = append(w.buf, byte(v>>8), byte(v)) }
func (w *classWriter) u32(v uint32) {
	w.buf = append(w.buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
func (w *classWriter) raw(b ...byte) { w.buf = append(w.buf, b...) }

func (w *classWriter) utf8(s string) {
	w.u8(TagUtf8)
	w.u16(uint16(len(s)))
	w.buf = append(w.buf, s...)
}

// Pool indices used by buildRectangleClass.
const (
	cpRectName   = 1  // Utf8 "Rectangle"
	cpRectClass  = 2  // Class -> #1
	cpObjName    = 3  // Utf8 "java/lang/Object"
	cpObjClass   = 4  // Class -> #3
	cpWidth      = 5  // Utf8 "width"
	cpDescD      = 6  // Utf8 "D"
	cpLength     = 7  // Utf8 "length"
	cpInit       = 8  // Utf8 "<init>"
	cpInitDesc   = 9  // Utf8 "(DD)V"
	cpCode       = 10 // Utf8 "Code"
	cpGetWidth   = 11 // Utf8 "get_width"
	cpGetDesc    = 12 // Utf8 "()D"
	cpSourceFile = 13 // Utf8 "SourceFile"
	cpRectJava   = 14 // Utf8 "Rectangle.java"
	cpDefault    = 15 // Double 2.9 (occupies 15 and 16)
	cpWidthNT    = 17 // NameAndType width:D
	cpWidthRef   = 18 // Fieldref Rectangle.width
	cpPoolCount  = 19
)

// buildRectangleClass assembles the bytecode the bundled Rectangle sample
// compiles to: two double fields (length final), a (DD)V constructor and a
// get_width accessor. The 2.9 field-initializer default sits in the pool the
// way javac emits it, loaded and then overwritten inside <init>.
func buildRectangleClass() []byte {
	w := &classWriter{}
	w.u32(Magic)
	w.u16(0)  // minor
	w.u16(52) // major (Java 8)

	w.u16(cpPoolCount)
	w.utf8("Rectangle")
	w.u8(TagClass)
	w.u16(cpRectName)
	w.utf8("java/lang/Object")
	w.u8(TagClass)
	w.u16(cpObjName)
	w.utf8("width")
	w.utf8("D")
	w.utf8("length")
	w.utf8("<init>")
	w.utf8("(DD)V")
	w.utf8("Code")
	w.utf8("get_width")
	w.utf8("()D")
	w.utf8("SourceFile")
	w.utf8("Rectangle.java")
	w.u8(TagDouble)
	bits := math.Float64bits(2.9)
	w.u32(uint32(bits >> 32))
	w.u32(uint32(bits))
	w.u8(TagNameAndType)
	w.u16(cpWidth)
	w.u16(cpDescD)
	w.u8(TagFieldref)
	w.u16(cpRectClass)
	w.u16(cpWidthNT)

	w.u16(uint16(AccPublic | AccSuper)) // access_flags
	w.u16(cpRectClass)                  // this_class
	w.u16(cpObjClass)                   // super_class
	w.u16(0)                            // interfaces

	w.u16(2) // fields
	w.u16(uint16(AccPrivate))
	w.u16(cpWidth)
	w.u16(cpDescD)
	w.u16(0)
	w.u16(uint16(AccPrivate | AccFinal))
	w.u16(cpLength)
	w.u16(cpDescD)
	w.u16(0)

	w.u16(2) // methods

	// <init>(DD)V: store the field-initializer default, then overwrite it
	// with the argument.
	initCode := []byte{
		0x2a,                   // aload_0
		0x14, 0x00, cpDefault,  // ldc2_w #15 (2.9)
		0xb5, 0x00, cpWidthRef, // putfield #18
		0x2a,                   // aload_0
		0x27,                   // dload_1
		0xb5, 0x00, cpWidthRef, // putfield #18
		0xb1, // return
	}
	w.u16(uint16(AccPublic))
	w.u16(cpInit)
	w.u16(cpInitDesc)
	w.u16(1) // one attribute: Code
	w.u16(cpCode)
	w.u32(uint32(12 + len(initCode))) // max_stack..attributes_count
	w.u16(3)                          // max_stack
	w.u16(5)                          // max_locals (this + two doubles)
	w.u32(uint32(len(initCode)))
	w.raw(initCode...)
	w.u16(0) // exception table
	w.u16(0) // code attributes

	getCode := []byte{
		0x2a,                   // aload_0
		0xb4, 0x00, cpWidthRef, // getfield #18
		0xaf, // dreturn
	}
	w.u16(uint16(AccPublic))
	w.u16(cpGetWidth)
	w.u16(cpGetDesc)
	w.u16(1)
	w.u16(cpCode)
	w.u32(uint32(12 + len(getCode)))
	w.u16(2)
	w.u16(1)
	w.u32(uint32(len(getCode)))
	w.raw(getCode...)
	w.u16(0)
	w.u16(0)

	w.u16(1) // class attributes: SourceFile
	w.u16(cpSourceFile)
	w.u32(2)
	w.u16(cpRectJava)

	return w.buf
}
