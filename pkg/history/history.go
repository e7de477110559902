// Package history keeps a SQLite log of past runs.
package history

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/tapevm/pkg/report"
)

// ErrRunNotFound indicates the requested run doesn't exist
var ErrRunNotFound = errors.New("run not found")

var historyLog = commonlog.GetLogger("tapevm.history")

// Entry is one row of the run log.
type Entry struct {
	ID           string
	Source       string
	CreatedAt    time.Time
	Instructions int
	Steps        uint64
	OutputBytes  uint64
}

// Store handles SQLite storage for run reports
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		instructions INTEGER NOT NULL,
		steps INTEGER NOT NULL,
		output_bytes INTEGER NOT NULL,
		report BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	historyLog.Debugf("opened %s", path)
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Record stores a run report. The full report is kept as CBOR next to the
// columns Recent lists.
func (s *Store) Record(r *report.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := report.Marshal(r, report.FormatCBOR)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO runs (id, source, created_at, instructions, steps, output_bytes, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Source, r.CreatedAt.Unix(), r.Compile.Instructions,
		int64(r.Run.Steps), int64(r.Run.OutputBytes), blob,
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	historyLog.Debugf("recorded run %s", r.ID)
	return nil
}

// Load retrieves the full report of a run.
func (s *Store) Load(id string) (*report.Report, error) {
	var blob []byte
	err := s.db.QueryRow("SELECT report FROM runs WHERE id = ?", id).Scan(&blob)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	return report.Unmarshal(blob, report.FormatCBOR)
}

// Recent returns up to limit runs, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, source, created_at, instructions, steps, output_bytes
		 FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			created int64
			steps   int64
			written int64
		)
		if err := rows.Scan(&e.ID, &e.Source, &created, &e.Instructions, &steps, &written); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		e.CreatedAt = time.Unix(created, 0).UTC()
		e.Steps = uint64(steps)
		e.OutputBytes = uint64(written)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Delete removes a run from the log.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.Exec("DELETE FROM runs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrRunNotFound
	}
	return nil
}
