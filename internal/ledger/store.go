// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records the outcome of every document in a SQLite database
// so an interrupted or repeated corpus run resumes where it stopped, and
// exports the recorded outcomes as a YAML or JSON report.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/pdf-corpus/pkg/types"
)

const dbFile = "ledger.db"

// Store manages the ledger database in the state directory.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates stateDir/ledger.db and its schema.
func Open(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	dbPath := filepath.Join(stateDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("opening ledger: %w", err)
	}
	// The coordinator is the only writer.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dir: stateDir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Dir returns the state directory holding the ledger.
func (s *Store) Dir() string { return s.dir }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			path TEXT PRIMARY KEY,
			size INTEGER,
			mod_time TEXT,
			status TEXT NOT NULL,
			reason TEXT,
			pages INTEGER,
			bytes_per_page INTEGER,
			output TEXT,
			failed_pages TEXT,
			duration_ms INTEGER,
			processed_at TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// Done reports whether path already has a terminal outcome recorded for the
// same modification time. Timeouts, failures and changed files are not done.
func (s *Store) Done(ctx context.Context, path string, modTime time.Time) (bool, error) {
	var storedModTime, status string
	err := s.db.QueryRowContext(ctx,
		`SELECT mod_time, status FROM documents WHERE path = ?`, path,
	).Scan(&storedModTime, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up %s: %w", path, err)
	}
	return storedModTime == formatTime(modTime) && types.DocumentStatus(status).Terminal(), nil
}

// Record stores the outcome of one document, replacing any earlier one.
func (s *Store) Record(ctx context.Context, r types.DocumentResult) error {
	failed, err := json.Marshal(r.FailedPages)
	if err != nil {
		return fmt.Errorf("encoding failed pages: %w", err)
	}
	processedAt := r.ProcessedAt
	if processedAt.IsZero() {
		processedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (path, size, mod_time, status, reason, pages, bytes_per_page, output, failed_pages, duration_ms, processed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			size=excluded.size, mod_time=excluded.mod_time, status=excluded.status,
			reason=excluded.reason, pages=excluded.pages, bytes_per_page=excluded.bytes_per_page,
			output=excluded.output, failed_pages=excluded.failed_pages,
			duration_ms=excluded.duration_ms, processed_at=excluded.processed_at`,
		r.Document.Path, r.Document.Size, formatTime(r.Document.ModTime),
		string(r.Status), r.Reason, r.Document.Pages, r.Document.BytesPerPage,
		r.OutputPath, string(failed), r.Duration.Milliseconds(), formatTime(processedAt),
	)
	if err != nil {
		return fmt.Errorf("recording %s: %w", r.Document.Path, err)
	}
	return nil
}

// Get returns the recorded outcome for path. The boolean is false when
// nothing is recorded.
func (s *Store) Get(ctx context.Context, path string) (types.DocumentResult, bool, error) {
	rows, err := s.db.QueryContext(ctx, selectDocuments+` WHERE path = ?`, path)
	if err != nil {
		return types.DocumentResult{}, false, fmt.Errorf("looking up %s: %w", path, err)
	}
	results, err := scanDocuments(rows)
	if err != nil || len(results) == 0 {
		return types.DocumentResult{}, false, err
	}
	return results[0], true, nil
}

// List returns recorded outcomes ordered by path. An empty status lists
// every document.
func (s *Store) List(ctx context.Context, status types.DocumentStatus) ([]types.DocumentResult, error) {
	query := selectDocuments
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY path`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	return scanDocuments(rows)
}

// Counts returns the number of recorded documents per status.
func (s *Store) Counts(ctx context.Context) (map[types.DocumentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, count(*) FROM documents GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting documents: %w", err)
	}
	defer rows.Close()

	counts := make(map[types.DocumentStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[types.DocumentStatus(status)] = n
	}
	return counts, rows.Err()
}

const selectDocuments = `SELECT path, size, mod_time, status, reason, pages, bytes_per_page,
	output, failed_pages, duration_ms, processed_at FROM documents`

func scanDocuments(rows *sql.Rows) ([]types.DocumentResult, error) {
	defer rows.Close()

	var results []types.DocumentResult
	for rows.Next() {
		var (
			r                          types.DocumentResult
			size, pages, bpp, duration sql.NullInt64
			modTime, status, reason    sql.NullString
			output, failed, processed  sql.NullString
		)
		if err := rows.Scan(&r.Document.Path, &size, &modTime, &status, &reason,
			&pages, &bpp, &output, &failed, &duration, &processed); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}

		r.Document.Size = size.Int64
		r.Document.Pages = int(pages.Int64)
		r.Document.BytesPerPage = bpp.Int64
		r.Status = types.DocumentStatus(status.String)
		r.Reason = reason.String
		r.OutputPath = output.String
		r.Duration = time.Duration(duration.Int64) * time.Millisecond
		if modTime.String != "" {
			r.Document.ModTime, _ = time.Parse(time.RFC3339Nano, modTime.String)
		}
		if processed.String != "" {
			r.ProcessedAt, _ = time.Parse(time.RFC3339Nano, processed.String)
		}
		if failed.String != "" && failed.String != "null" {
			if err := json.Unmarshal([]byte(failed.String), &r.FailedPages); err != nil {
				return nil, fmt.Errorf("decoding failed pages of %s: %w", r.Document.Path, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
