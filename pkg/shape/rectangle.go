// Package shape holds the plain value types used by the bundled sample
// classes. Rectangle mirrors the Rectangle sample class that ships with the
// inspector, so fixture tests can check parsed bytecode against the real
// semantics of the type it compiles from.
package shape

// Rectangle holds two dimensions. The length is fixed at construction and
// never exposed for writing; the width is readable through GetWidth only.
type Rectangle struct {
	width  float64
	length float64
}

// NewRectangle builds a Rectangle from the given dimensions. Values are
// stored exactly as passed; there is no range validation.
func NewRectangle(width, length float64) Rectangle {
	return Rectangle{width: width, length: length}
}

// GetWidth returns the stored width.
func (r Rectangle) GetWidth() float64 {
	return r.width
}
