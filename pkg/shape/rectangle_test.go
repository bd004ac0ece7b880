package shape

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetWidthReturnsConstructorArgument(t *testing.T) {
	tests := []struct {
		name   string
		width  float64
		length float64
	}{
		{"Typical", 3.5, 7.0},
		{"Zero", 0.0, 0.0},
		{"NegativeWidth", -1.0, 5.0},
		{"SubnormalWidth", math.SmallestNonzeroFloat64, 1.0},
		{"HugeWidth", math.MaxFloat64, 2.0},
		{"InfWidth", math.Inf(1), 2.0},
		{"NegInfWidth", math.Inf(-1), 2.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRectangle(tt.width, tt.length)
			got := r.GetWidth()
			// Bit-exact comparison, not approximate.
			assert.Equal(t, math.Float64bits(tt.width), math.Float64bits(got))
		})
	}
}

func TestGetWidthNaN(t *testing.T) {
	r := NewRectangle(math.NaN(), 1.0)
	assert.True(t, math.IsNaN(r.GetWidth()))
}

func TestInstancesAreIndependent(t *testing.T) {
	a := NewRectangle(1.5, 2.5)
	b := NewRectangle(1.5, 2.5)

	// Values, not references: changing one copy must not leak into the other.
	a.width = 99.0
	assert.Equal(t, 1.5, b.GetWidth())
	assert.Equal(t, 99.0, a.GetWidth())
}

func TestFieldInitializerDefaultNeverObservable(t *testing.T) {
	// The Java original declares `width = 2.9` as a field initializer that the
	// constructor always overwrites. The Go type must never surface it.
	r := NewRectangle(3.5, 7.0)
	assert.NotEqual(t, 2.9, r.GetWidth())

	var zero Rectangle
	assert.Equal(t, 0.0, zero.GetWidth())
}
