// Package store persists parsed class metadata in a SQLite index so scans
// can be queried later without reparsing the class files.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"classpeek/internal/logging"
)

// ClassRecord is one indexed class.
type ClassRecord struct {
	Path           string
	Name           string
	SuperName      string
	Version        string
	Access         string
	SourceFile     string
	FieldCount     int
	MethodCount    int
	InterfaceCount int
}

// Run describes one index run.
type Run struct {
	ID         string
	Root       string
	StartedAt  time.Time
	FinishedAt time.Time
	ClassCount int
}

// Index is the SQLite-backed class index.
type Index struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
	logger *zap.Logger
}

// Open initializes the SQLite database at the given path. ":memory:" works
// for tests. A nil logger is replaced with a no-op one.
func Open(path string, logger *zap.Logger) (*Index, error) {
	logger = logging.OrNop(logger)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logger.Debug("failed to set sqlite busy_timeout", zap.Error(err))
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logger.Debug("failed to set sqlite journal_mode=WAL", zap.Error(err))
	}

	idx := &Index{db: db, dbPath: path, logger: logger}
	if err := idx.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	logger.Debug("class index opened", zap.String("path", path))
	return idx, nil
}

func (x *Index) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		started_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		finished_at TIMESTAMP,
		class_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE TABLE IF NOT EXISTS classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		path TEXT NOT NULL,
		name TEXT NOT NULL,
		super_name TEXT NOT NULL DEFAULT '',
		version TEXT NOT NULL DEFAULT '',
		access TEXT NOT NULL DEFAULT '',
		source_file TEXT NOT NULL DEFAULT '',
		field_count INTEGER NOT NULL DEFAULT 0,
		method_count INTEGER NOT NULL DEFAULT 0,
		interface_count INTEGER NOT NULL DEFAULT 0,
		indexed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_classes_name ON classes(name);
	CREATE INDEX IF NOT EXISTS idx_classes_run ON classes(run_id);
	`
	_, err := x.db.Exec(schema)
	return err
}

// Close closes the underlying database.
func (x *Index) Close() error {
	return x.db.Close()
}

// BeginRun records a new index run and returns its id.
func (x *Index) BeginRun(root string) (string, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	id := uuid.NewString()
	if _, err := x.db.Exec(`INSERT INTO runs (id, root) VALUES (?, ?)`, id, root); err != nil {
		return "", fmt.Errorf("failed to record run: %w", err)
	}
	return id, nil
}

// FinishRun stamps a run as finished with its final class count.
func (x *Index) FinishRun(runID string, classCount int) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	res, err := x.db.Exec(
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, class_count = ? WHERE id = ?`,
		classCount, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("unknown run %s", runID)
	}
	return nil
}

// Runs returns all index runs, newest first. FinishedAt is zero for a run
// that never completed.
func (x *Index) Runs() ([]Run, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	rows, err := x.db.Query(`SELECT id, root, started_at, finished_at, class_count
		FROM runs ORDER BY started_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Root, &r.StartedAt, &finished, &r.ClassCount); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		if finished.Valid {
			r.FinishedAt = finished.Time
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordClass stores one parsed class under a run.
func (x *Index) RecordClass(runID string, rec ClassRecord) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	_, err := x.db.Exec(`
		INSERT INTO classes (run_id, path, name, super_name, version, access,
			source_file, field_count, method_count, interface_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, rec.Path, rec.Name, rec.SuperName, rec.Version, rec.Access,
		rec.SourceFile, rec.FieldCount, rec.MethodCount, rec.InterfaceCount)
	if err != nil {
		return fmt.Errorf("failed to record class %s: %w", rec.Name, err)
	}
	return nil
}

// ListClasses returns all indexed classes, newest run first. runID narrows
// the listing to one run when non-empty.
func (x *Index) ListClasses(runID string) ([]ClassRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	query := `SELECT path, name, super_name, version, access, source_file,
		field_count, method_count, interface_count FROM classes`
	args := []any{}
	if runID != "" {
		query += ` WHERE run_id = ?`
		args = append(args, runID)
	}
	query += ` ORDER BY id DESC`
	return x.queryClasses(query, args...)
}

// FindClasses returns classes whose name matches the SQL LIKE pattern.
func (x *Index) FindClasses(pattern string) ([]ClassRecord, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	return x.queryClasses(`SELECT path, name, super_name, version, access,
		source_file, field_count, method_count, interface_count
		FROM classes WHERE name LIKE ? ORDER BY name`, pattern)
}

func (x *Index) queryClasses(query string, args ...any) ([]ClassRecord, error) {
	rows, err := x.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query classes: %w", err)
	}
	defer rows.Close()

	var out []ClassRecord
	for rows.Next() {
		var rec ClassRecord
		if err := rows.Scan(&rec.Path, &rec.Name, &rec.SuperName, &rec.Version,
			&rec.Access, &rec.SourceFile, &rec.FieldCount, &rec.MethodCount,
			&rec.InterfaceCount); err != nil {
			return nil, fmt.Errorf("failed to scan class row: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats returns row counts per table.
func (x *Index) Stats() (map[string]int, error) {
	x.mu.Lock()
	defer x.mu.Unlock()

	stats := make(map[string]int)
	for _, table := range []string{"runs", "classes"} {
		var n int
		if err := x.db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = n
	}
	return stats, nil
}
