// Package scan walks a directory tree, parses every classfile in it and
// records the results in the index.
package scan

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"classpeek/internal/classfile"
	"classpeek/internal/logging"
	"classpeek/internal/store"
)

// Summary reports what one scan did. Failed counts classfiles that would not
// parse; those are logged and skipped, not fatal.
type Summary struct {
	RunID    string
	Scanned  int
	Parsed   int
	Failed   int
	Duration time.Duration
}

// Directory scans root for *.class files and indexes them under a single
// run. workers bounds concurrent file parsing.
func Directory(ctx context.Context, root string, workers int, idx *store.Index, logger *zap.Logger) (*Summary, error) {
	logger = logging.OrNop(logger)
	start := time.Now()

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".class") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	runID, err := idx.BeginRun(root)
	if err != nil {
		return nil, err
	}

	if workers < 1 {
		workers = 1
	}
	var parsed, failed atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(path)
			if err != nil {
				logger.Warn("failed to read classfile", zap.String("path", path), zap.Error(err))
				failed.Add(1)
				return nil
			}
			cf, err := classfile.Parse(data)
			if err != nil {
				logger.Warn("failed to parse classfile", zap.String("path", path), zap.Error(err))
				failed.Add(1)
				return nil
			}
			rec := store.ClassRecord{
				Path:           path,
				Name:           cf.ThisClassName(),
				SuperName:      cf.SuperClassName(),
				Version:        cf.Version(),
				Access:         cf.Flags.ClassString(),
				SourceFile:     cf.SourceFileName(),
				FieldCount:     len(cf.Fields),
				MethodCount:    len(cf.Methods),
				InterfaceCount: len(cf.Interfaces),
			}
			if err := idx.RecordClass(runID, rec); err != nil {
				return err
			}
			parsed.Add(1)
			logger.Debug("indexed class", zap.String("name", rec.Name), zap.String("path", path))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Close out the run so the index keeps no dangling unfinished rows.
		if ferr := idx.FinishRun(runID, int(parsed.Load())); ferr != nil {
			logger.Warn("failed to finish aborted run",
				zap.String("run", runID), zap.Error(ferr))
		}
		return nil, err
	}

	summary := &Summary{
		RunID:    runID,
		Scanned:  len(paths),
		Parsed:   int(parsed.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
	}
	if err := idx.FinishRun(runID, summary.Parsed); err != nil {
		return nil, err
	}
	return summary, nil
}
