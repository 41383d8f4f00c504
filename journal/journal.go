// Package journal keeps history of generation runs and cached style
// directories in a small sqlite database.
package journal

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"exgen/common"
)

// InMemory is database path which keeps journal in memory only.
const InMemory = ":memory:"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started     INTEGER NOT NULL,
	preset      TEXT NOT NULL DEFAULT '',
	content     TEXT NOT NULL DEFAULT '',
	sheet       TEXT NOT NULL,
	output      TEXT NOT NULL DEFAULT '',
	outcome     TEXT NOT NULL,
	warnings    INTEGER NOT NULL DEFAULT 0,
	rewritten   INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started);
CREATE TABLE IF NOT EXISTS style_cache (
	path     TEXT PRIMARY KEY,
	modified INTEGER NOT NULL,
	size     INTEGER NOT NULL,
	sum      TEXT NOT NULL,
	payload  BLOB NOT NULL
);
`

// Run is a single journal record: one sheet produced for one request.
type Run struct {
	// request id with sheet name appended
	ID        string
	Started   time.Time
	Preset    string
	Content   string
	Sheet     common.Sheet
	Output    string
	Outcome   common.Outcome
	Warnings  int
	Rewritten int
	Error     string
}

// Journal is safe for concurrent use, all statements go through a single
// connection.
type Journal struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// Open opens or creates journal database.
func Open(path string, log *zap.Logger) (*Journal, error) {
	flags := []sqlite.OpenFlags{sqlite.OpenReadWrite, sqlite.OpenCreate}
	if path == InMemory {
		flags = append(flags, sqlite.OpenMemory)
	} else {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("unable to create journal directory: %w", err)
		}
		flags = append(flags, sqlite.OpenWAL)
	}
	conn, err := sqlite.OpenConn(path, flags...)
	if err != nil {
		return nil, fmt.Errorf("unable to open journal '%s': %w", path, err)
	}
	conn.SetBusyTimeout(5 * time.Second)
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return nil, multierr.Append(fmt.Errorf("unable to prepare journal schema: %w", err), conn.Close())
	}
	return &Journal{conn: conn, log: log.Named("journal").With(zap.String("path", path))}, nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.conn == nil {
		return nil
	}
	err := j.conn.Close()
	j.conn = nil
	return err
}

// RecordRun stores run, records with the same id are replaced.
func (j *Journal) RecordRun(r Run) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := sqlitex.Execute(j.conn, `INSERT OR REPLACE INTO runs
		(id, started, preset, content, sheet, output, outcome, warnings, rewritten, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{
			r.ID, r.Started.UnixMilli(), r.Preset, r.Content, r.Sheet.String(), r.Output,
			r.Outcome.String(), r.Warnings, r.Rewritten, r.Error,
		}})
	if err != nil {
		return fmt.Errorf("unable to record run %s: %w", r.ID, err)
	}
	return nil
}

// Runs returns most recent runs first.
func (j *Journal) Runs(limit int) ([]Run, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var out []Run
	err := sqlitex.Execute(j.conn, `SELECT id, started, preset, content, sheet, output, outcome, warnings, rewritten, error
		FROM runs ORDER BY started DESC, rowid DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				r := Run{
					ID:        stmt.ColumnText(0),
					Started:   time.UnixMilli(stmt.ColumnInt64(1)),
					Preset:    stmt.ColumnText(2),
					Content:   stmt.ColumnText(3),
					Output:    stmt.ColumnText(5),
					Warnings:  stmt.ColumnInt(7),
					Rewritten: stmt.ColumnInt(8),
					Error:     stmt.ColumnText(9),
				}
				var err error
				if r.Sheet, err = common.ParseSheet(stmt.ColumnText(4)); err != nil {
					return err
				}
				if r.Outcome, err = common.ParseOutcome(stmt.ColumnText(6)); err != nil {
					return err
				}
				out = append(out, r)
				return nil
			}})
	if err != nil {
		return nil, fmt.Errorf("unable to read runs: %w", err)
	}
	return out, nil
}

// LastPreset returns preset of the most recent run which produced a document.
// Empty string means the last run did not use a preset.
func (j *Journal) LastPreset() (string, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var (
		preset string
		found  bool
	)
	err := sqlitex.Execute(j.conn, `SELECT preset FROM runs WHERE outcome != ?
		ORDER BY started DESC, rowid DESC LIMIT 1`,
		&sqlitex.ExecOptions{
			Args: []any{common.OutcomeFailed.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				preset, found = stmt.ColumnText(0), true
				return nil
			}})
	if err != nil {
		return "", false, fmt.Errorf("unable to read last preset: %w", err)
	}
	return preset, found, nil
}

// LoadStyles returns cached style directory payload when cache entry matches
// file state.
func (j *Journal) LoadStyles(path string, modTime time.Time, size int64, sum string) ([]byte, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	var (
		payload []byte
		found   bool
	)
	err := sqlitex.Execute(j.conn, `SELECT payload FROM style_cache
		WHERE path = ? AND modified = ? AND size = ? AND sum = ?`,
		&sqlitex.ExecOptions{
			Args: []any{path, modTime.UnixNano(), size, sum},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var err error
				if payload, err = io.ReadAll(stmt.ColumnReader(0)); err != nil {
					return err
				}
				found = true
				return nil
			}})
	if err != nil {
		return nil, false, fmt.Errorf("unable to read style cache: %w", err)
	}
	if found {
		j.log.Debug("Style cache hit", zap.String("template", path))
	}
	return payload, found, nil
}

// StoreStyles replaces cached style directory of the file.
func (j *Journal) StoreStyles(path string, modTime time.Time, size int64, sum string, payload []byte) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	err := sqlitex.Execute(j.conn, `INSERT OR REPLACE INTO style_cache (path, modified, size, sum, payload)
		VALUES (?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{Args: []any{path, modTime.UnixNano(), size, sum, payload}})
	if err != nil {
		return fmt.Errorf("unable to store style cache: %w", err)
	}
	return nil
}
