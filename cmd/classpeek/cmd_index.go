package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"classpeek/internal/scan"
	"classpeek/internal/store"
)

var (
	indexWorkers int
	classesLike  string
	classesRun   string
)

// indexCmd scans a directory tree into the class index
var indexCmd = &cobra.Command{
	Use:   "index [directory]",
	Short: "Index every classfile under a directory",
	Long: `Walks the directory tree, parses each *.class file and records it in
the SQLite class index. Files that fail to parse are logged and skipped.

The index lives at ~/.classpeek/index.db by default; override it in the
config file or with CLASSPEEK_INDEX_PATH.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndex,
}

// classesCmd lists or searches indexed classes
var classesCmd = &cobra.Command{
	Use:   "classes",
	Short: "List indexed classes",
	Long: `Lists classes from the index. --like filters by name with SQL LIKE
syntax, --run restricts to a single indexing run.

Examples:
  classpeek classes
  classpeek classes --like '%Rectangle%'`,
	Args: cobra.NoArgs,
	RunE: listClasses,
}

func init() {
	indexCmd.Flags().IntVarP(&indexWorkers, "workers", "j", 0, "Concurrent parsers (default from config)")
	classesCmd.Flags().StringVar(&classesLike, "like", "", "Filter names with a SQL LIKE pattern")
	classesCmd.Flags().StringVar(&classesRun, "run", "", "Show only classes from this run")
}

func openIndex() (*store.Index, error) {
	return store.Open(cfg.Index.DatabasePath, logger)
}

func runIndex(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	workers := indexWorkers
	if workers <= 0 {
		workers = cfg.Index.Workers
	}

	logger.Info("Indexing classfiles",
		zap.String("root", args[0]),
		zap.Int("workers", workers))

	sum, err := scan.Directory(ctx, args[0], workers, idx, logger)
	if err != nil {
		return err
	}

	fmt.Printf("run:     %s\n", sum.RunID)
	fmt.Printf("scanned: %d\n", sum.Scanned)
	fmt.Printf("parsed:  %d\n", sum.Parsed)
	fmt.Printf("failed:  %d\n", sum.Failed)
	fmt.Printf("took:    %s\n", sum.Duration.Round(1e6))
	return nil
}

func listClasses(cmd *cobra.Command, args []string) error {
	idx, err := openIndex()
	if err != nil {
		return err
	}
	defer idx.Close()

	var recs []store.ClassRecord
	if classesLike != "" {
		recs, err = idx.FindClasses(classesLike)
	} else {
		recs, err = idx.ListClasses(classesRun)
	}
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("no classes found")
		return nil
	}

	for _, rec := range recs {
		fmt.Printf("%-40s %-8s %2df %2dm  %s\n",
			rec.Name, rec.Version, rec.FieldCount, rec.MethodCount, rec.Path)
	}
	return nil
}
