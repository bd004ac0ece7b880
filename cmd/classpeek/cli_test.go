package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"classpeek/internal/config"
)

// testClassBytes builds a small valid classfile: class Rectangle with one
// private double field and one public method with code.
func testClassBytes() []byte {
	var b []byte
	u16 := func(v uint16) { b = append(b, byte(v>>8), byte(v)) }
	u32 := func(v uint32) { b = append(b, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)) }
	utf8 := func(s string) {
		b = append(b, 1)
		u16(uint16(len(s)))
		b = append(b, s...)
	}

	u32(0xCAFEBABE)
	u16(0)
	u16(52)
	u16(10)
	utf8("Rectangle")
	b = append(b, 7)
	u16(1)
	utf8("java/lang/Object")
	b = append(b, 7)
	u16(3)
	utf8("width")
	utf8("D")
	utf8("get_width")
	utf8("()D")
	utf8("Code")

	u16(0x0021)
	u16(2)
	u16(4)
	u16(0)

	u16(1)
	u16(0x0002)
	u16(5)
	u16(6)
	u16(0)

	u16(1)
	u16(0x0001)
	u16(7)
	u16(8)
	u16(1)
	u16(9)
	code := []byte{0x2a, 0xaf}
	u32(uint32(12 + len(code)))
	u16(2)
	u16(1)
	u32(uint32(len(code)))
	b = append(b, code...)
	u16(0)
	u16(0)

	u16(0)
	return b
}

func setupCLI(t *testing.T) string {
	t.Helper()
	logger = zap.NewNop()
	cfg = config.DefaultConfig()
	cfg.Index.DatabasePath = filepath.Join(t.TempDir(), "index.db")

	path := filepath.Join(t.TempDir(), "Rectangle.class")
	require.NoError(t, os.WriteFile(path, testClassBytes(), 0644))
	return path
}

func TestInfoCmd(t *testing.T) {
	path := setupCLI(t)
	cmd := &cobra.Command{}

	require.NoError(t, showInfo(cmd, []string{path}))
	assert.Error(t, showInfo(cmd, []string{path + ".missing"}))
}

func TestDumpCmd(t *testing.T) {
	path := setupCLI(t)
	require.NoError(t, dumpClass(&cobra.Command{}, []string{path}))
}

func TestDisasmCmd(t *testing.T) {
	path := setupCLI(t)
	cmd := &cobra.Command{}

	require.NoError(t, disassemble(cmd, []string{path}))

	disasmMethod = "get_width"
	defer func() { disasmMethod = "" }()
	require.NoError(t, disassemble(cmd, []string{path}))

	disasmMethod = "no_such_method"
	assert.Error(t, disassemble(cmd, []string{path}))
}

func TestIndexAndClassesCmd(t *testing.T) {
	path := setupCLI(t)
	cmd := &cobra.Command{}

	require.NoError(t, runIndex(cmd, []string{filepath.Dir(path)}))
	require.NoError(t, listClasses(cmd, nil))

	classesLike = "%Rectangle%"
	defer func() { classesLike = "" }()
	require.NoError(t, listClasses(cmd, nil))
}

func TestLoadClassFileRejectsGarbage(t *testing.T) {
	setupCLI(t)
	path := filepath.Join(t.TempDir(), "bad.class")
	require.NoError(t, os.WriteFile(path, []byte("not a classfile"), 0644))

	_, err := loadClassFile(path)
	assert.Error(t, err)
}

func TestClassReportMarkdown(t *testing.T) {
	path := setupCLI(t)
	cf, err := loadClassFile(path)
	require.NoError(t, err)

	md := classReport(path, cf)
	assert.True(t, strings.HasPrefix(md, "# Rectangle\n"))
	assert.Contains(t, md, "| Super class | java/lang/Object |")
	assert.Contains(t, md, "| Version | 52.0 |")
	assert.Contains(t, md, "`private double width`")
	assert.Contains(t, md, "get_width () -> double")
	assert.Contains(t, md, "(2 bytes of code)")
}
