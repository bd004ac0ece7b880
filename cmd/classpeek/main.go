package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classpeek/internal/classfile"
	"classpeek/internal/config"
	"classpeek/internal/logging"
)

var (
	// Global flags
	verbose bool
	cfgPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "classpeek",
	Short: "classpeek - JVM classfile and DEX inspector",
	Long: `classpeek parses JVM classfiles and Android DEX files and shows what
is inside them: constant pool, fields, methods, attributes and disassembled
bytecode.

It can also index whole directory trees of classfiles into a local SQLite
database for later lookup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		logger, err = logging.New(cfg.Logging.Level, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Config file (default ~/.classpeek.yaml)")

	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(disasmCmd)
	rootCmd.AddCommand(dexCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(classesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(tuiCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadClassFile reads and parses one classfile from disk.
func loadClassFile(path string) (*classfile.ClassFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cf, nil
}
