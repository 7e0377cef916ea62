package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"shadowplay/internal/config"
)

// Record is one cached identity decision for a library folder. Resolved
// records carry the catalog identity; unresolved records mark folders whose
// lookup failed so the daemon does not retry them every cycle.
type Record struct {
	FolderPath string
	Resolved   bool
	Source     string
	SourceID   string
	Title      string
	SearchTerm string
	Score      float64
	Synopsis   string
	CoverFile  string
	UpdatedAt  time.Time
}

// ErrNotFound reports a folder with no cached identity.
var ErrNotFound = errors.New("identity: not found")

// Store persists folder identities in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open initializes or connects to the identity database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := cfg.IdentityDBPath()
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk location of the database.
func (s *Store) Path() string {
	return s.path
}

// Lookup fetches the cached identity for a folder path. Returns ErrNotFound
// when the folder has never been resolved.
func (s *Store) Lookup(ctx context.Context, folderPath string) (Record, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `
		SELECT folder_path, resolved, source, source_id, title, search_term, score, synopsis, cover_file, updated_at
		FROM folder_identities WHERE folder_path = ?`, folderPath)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, folderPath)
	}
	if err != nil {
		return Record{}, fmt.Errorf("lookup identity: %w", err)
	}
	return rec, nil
}

// Save upserts a record, stamping UpdatedAt.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.FolderPath) == "" {
		return errors.New("identity: folder path required")
	}
	rec.UpdatedAt = time.Now().UTC()
	return s.execWithRetry(ensureContext(ctx), `
		INSERT INTO folder_identities (folder_path, resolved, source, source_id, title, search_term, score, synopsis, cover_file, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(folder_path) DO UPDATE SET
			resolved = excluded.resolved,
			source = excluded.source,
			source_id = excluded.source_id,
			title = excluded.title,
			search_term = excluded.search_term,
			score = excluded.score,
			synopsis = excluded.synopsis,
			cover_file = excluded.cover_file,
			updated_at = excluded.updated_at`,
		rec.FolderPath, boolToInt(rec.Resolved), rec.Source, rec.SourceID, rec.Title,
		rec.SearchTerm, rec.Score, rec.Synopsis, rec.CoverFile,
		rec.UpdatedAt.Format(time.RFC3339Nano))
}

// Invalidate removes a folder's cached identity so the next cycle resolves
// it again. Removing an absent folder is not an error; the bool reports
// whether anything was deleted.
func (s *Store) Invalidate(ctx context.Context, folderPath string) (bool, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx,
			"DELETE FROM folder_identities WHERE folder_path = ?", folderPath)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("invalidate identity: %w", err)
	}
	return affected > 0, nil
}

// Clear drops every cached identity and returns the number removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	ctx = ensureContext(ctx)
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := s.db.ExecContext(ctx, "DELETE FROM folder_identities")
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("clear identities: %w", err)
	}
	return affected, nil
}

// List returns every record ordered by folder path.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `
		SELECT folder_path, resolved, source, source_id, title, search_term, score, synopsis, cover_file, updated_at
		FROM folder_identities ORDER BY folder_path`)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []Record
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan identity: %w", scanErr)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	return records, nil
}

// Count reports total and resolved record counts.
func (s *Store) Count(ctx context.Context) (total int64, resolved int64, err error) {
	ctx = ensureContext(ctx)
	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(1), COALESCE(SUM(resolved), 0) FROM folder_identities").Scan(&total, &resolved)
	if err != nil {
		return 0, 0, fmt.Errorf("count identities: %w", err)
	}
	return total, resolved, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var (
		rec       Record
		resolved  int
		updatedAt string
	)
	if err := row.Scan(&rec.FolderPath, &resolved, &rec.Source, &rec.SourceID, &rec.Title,
		&rec.SearchTerm, &rec.Score, &rec.Synopsis, &rec.CoverFile, &updatedAt); err != nil {
		return Record{}, err
	}
	rec.Resolved = resolved != 0
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		rec.UpdatedAt = ts
	}
	return rec, nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}
