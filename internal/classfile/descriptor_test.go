package classfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldType(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"D", "double"},
		{"I", "int"},
		{"Z", "boolean"},
		{"[I", "int[]"},
		{"[[J", "long[][]"},
		{"Ljava/lang/String;", "java.lang.String"},
		{"[Ljava/util/List;", "java.util.List[]"},
		{"Q", "Q"},   // unknown base type stays as-is
		{"LFoo", "LFoo"}, // missing semicolon
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FieldType(tt.desc), "descriptor %q", tt.desc)
	}
}

func TestMethodSignature(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"(DD)V", "(double, double) -> void"},
		{"()D", "() -> double"},
		{"(ILjava/lang/String;[B)Z", "(int, java.lang.String, byte[]) -> boolean"},
		{"()V", "() -> void"},
		{"(D", "(D"},       // unterminated
		{"DD)V", "DD)V"},   // no opening paren
		{"(Q)V", "(Q)V"},   // bad parameter type
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MethodSignature(tt.desc), "descriptor %q", tt.desc)
	}
}
