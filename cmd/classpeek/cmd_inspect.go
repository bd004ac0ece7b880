package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"classpeek/internal/bytecode"
	"classpeek/internal/classfile"
	"classpeek/internal/dex"
)

var disasmMethod string

// infoCmd prints a one-screen summary of a classfile
var infoCmd = &cobra.Command{
	Use:   "info [file.class]",
	Short: "Show a summary of a classfile",
	Args:  cobra.ExactArgs(1),
	RunE:  showInfo,
}

// dumpCmd prints every section of a classfile
var dumpCmd = &cobra.Command{
	Use:   "dump [file.class]",
	Short: "Dump all sections of a classfile",
	Long: `Dumps the complete decoded contents of a classfile: version, constant
pool, access flags, interfaces, fields, methods and attributes.`,
	Args: cobra.ExactArgs(1),
	RunE: dumpClass,
}

// disasmCmd disassembles method bytecode
var disasmCmd = &cobra.Command{
	Use:   "disasm [file.class]",
	Short: "Disassemble method bytecode",
	Long: `Disassembles the Code attribute of every method, or of a single
method when --method is given.

Example:
  classpeek disasm Rectangle.class --method get_width`,
	Args: cobra.ExactArgs(1),
	RunE: disassemble,
}

// dexCmd inspects an Android DEX file
var dexCmd = &cobra.Command{
	Use:   "dex [classes.dex]",
	Short: "Show the contents of a DEX file",
	Args:  cobra.ExactArgs(1),
	RunE:  showDex,
}

func init() {
	disasmCmd.Flags().StringVarP(&disasmMethod, "method", "m", "", "Disassemble only this method")
}

func showInfo(cmd *cobra.Command, args []string) error {
	cf, err := loadClassFile(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("class:       %s\n", cf.ThisClassName())
	fmt.Printf("super:       %s\n", cf.SuperClassName())
	fmt.Printf("version:     %s\n", cf.Version())
	fmt.Printf("access:      %s\n", cf.Flags.ClassString())
	fmt.Printf("source file: %s\n", cf.SourceFileName())
	if ifaces := cf.InterfaceNames(); len(ifaces) > 0 {
		fmt.Printf("interfaces:  %s\n", strings.Join(ifaces, ", "))
	}
	fmt.Printf("fields:      %d\n", len(cf.Fields))
	fmt.Printf("methods:     %d\n", len(cf.Methods))
	fmt.Printf("constants:   %d\n", len(cf.ConstPool)-1)
	return nil
}

func dumpClass(cmd *cobra.Command, args []string) error {
	cf, err := loadClassFile(args[0])
	if err != nil {
		return err
	}
	fmt.Print(cf.Dump())
	return nil
}

func disassemble(cmd *cobra.Command, args []string) error {
	cf, err := loadClassFile(args[0])
	if err != nil {
		return err
	}

	methods := cf.Methods
	if disasmMethod != "" {
		m, ok := cf.FindMethod(disasmMethod)
		if !ok {
			return fmt.Errorf("no method named %q in %s", disasmMethod, cf.ThisClassName())
		}
		methods = []classfile.Method{m}
	}

	for _, m := range methods {
		fmt.Printf("%s %s\n", cf.MethodName(m), classfile.MethodSignature(cf.MethodDescriptor(m)))
		code := m.CodeAttr()
		if code == nil {
			fmt.Println("  (no code)")
			continue
		}
		fmt.Printf("  max_stack: %d  max_locals: %d\n", code.MaxStack, code.MaxLocals)
		text, err := bytecode.Format(code.Code)
		if err != nil {
			return fmt.Errorf("disassemble %s: %w", cf.MethodName(m), err)
		}
		fmt.Print(text)
		fmt.Println()
	}
	return nil
}

func showDex(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	df, err := dex.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	fmt.Print(df.Dump())
	return nil
}
