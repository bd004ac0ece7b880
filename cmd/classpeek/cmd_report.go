package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"classpeek/internal/classfile"
)

var reportPlain bool

// reportCmd renders a markdown report of a classfile
var reportCmd = &cobra.Command{
	Use:   "report [file.class]",
	Short: "Render a readable report of a classfile",
	Long: `Builds a markdown report of the classfile and renders it for the
terminal. Use --plain to get the raw markdown instead.`,
	Args: cobra.ExactArgs(1),
	RunE: renderReport,
}

func init() {
	reportCmd.Flags().BoolVar(&reportPlain, "plain", false, "Print raw markdown without terminal styling")
}

func renderReport(cmd *cobra.Command, args []string) error {
	cf, err := loadClassFile(args[0])
	if err != nil {
		return err
	}

	md := classReport(args[0], cf)
	if reportPlain {
		fmt.Print(md)
		return nil
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(100),
	)
	if err != nil {
		return fmt.Errorf("build renderer: %w", err)
	}
	out, err := renderer.Render(md)
	if err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	fmt.Print(out)
	return nil
}

// classReport builds the markdown for one classfile.
func classReport(path string, cf *classfile.ClassFile) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", cf.ThisClassName())
	fmt.Fprintf(&b, "`%s`\n\n", path)

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| Super class | %s |\n", cf.SuperClassName())
	fmt.Fprintf(&b, "| Version | %s |\n", cf.Version())
	fmt.Fprintf(&b, "| Access | %s |\n", cf.Flags.ClassString())
	fmt.Fprintf(&b, "| Source file | %s |\n", cf.SourceFileName())
	fmt.Fprintf(&b, "| Constants | %d |\n", len(cf.ConstPool)-1)
	b.WriteString("\n")

	if names := cf.InterfaceNames(); len(names) > 0 {
		b.WriteString("## Interfaces\n\n")
		for _, n := range names {
			fmt.Fprintf(&b, "- %s\n", n)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Fields\n\n")
	if len(cf.Fields) == 0 {
		b.WriteString("none\n\n")
	} else {
		for _, f := range cf.Fields {
			fmt.Fprintf(&b, "- `%s %s %s`\n",
				f.Flags.FieldString(),
				classfile.FieldType(cf.FieldDescriptor(f)),
				cf.FieldName(f))
		}
		b.WriteString("\n")
	}

	b.WriteString("## Methods\n\n")
	if len(cf.Methods) == 0 {
		b.WriteString("none\n\n")
	} else {
		for _, m := range cf.Methods {
			line := fmt.Sprintf("- `%s %s %s`",
				m.Flags.MethodString(),
				cf.MethodName(m),
				classfile.MethodSignature(cf.MethodDescriptor(m)))
			if code := m.CodeAttr(); code != nil {
				line += fmt.Sprintf(" (%d bytes of code)", len(code.Code))
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	}

	return b.String()
}
