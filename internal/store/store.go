// Package store persists pages, page groups and custom components in
// SQLite. The store is a single-writer resource: one connection, WAL mode,
// and a busy timeout cover the cross-process case (an external editor
// touching the same file).
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"studio/internal/logging"
	"studio/internal/page"
)

// ErrNotFound is returned when a record id does not exist.
var ErrNotFound = errors.New("store: record not found")

// ErrSchemaVersion is returned when the database was written by a newer
// studio than this binary understands.
var ErrSchemaVersion = errors.New("store: unsupported schema version")

// Store is the SQLite-backed page store.
type Store struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

// Open initializes the database at path, creating it and the schema when
// missing.
func Open(path string) (*Store, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("failed to set busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("failed to set journal_mode=WAL: %v", err)
	}
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("failed to set synchronous=NORMAL: %v", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.checkSchemaVersion(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("store opened at %s (schema v%d)", path, page.SchemaVersion)
	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pages (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS page_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS custom_components (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		document TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS schema_meta (
		version INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_pages_name ON pages(name);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

func (s *Store) checkSchemaVersion() error {
	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_meta LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = s.db.Exec(`INSERT INTO schema_meta(version) VALUES (?)`, page.SchemaVersion)
		return err
	case err != nil:
		return fmt.Errorf("failed to read schema version: %w", err)
	case version > page.SchemaVersion:
		return fmt.Errorf("%w: database is v%d, binary supports v%d", ErrSchemaVersion, version, page.SchemaVersion)
	default:
		return nil
	}
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ListPages returns every page, ordered by creation time.
func (s *Store) ListPages() ([]*page.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT document FROM pages ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list pages: %w", err)
	}
	defer rows.Close()

	var pages []*page.Meta
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		var m page.Meta
		if err := json.Unmarshal([]byte(doc), &m); err != nil {
			logging.StoreError("skipping corrupt page document: %v", err)
			continue
		}
		pages = append(pages, &m)
	}
	return pages, rows.Err()
}

// GetPage returns one page by id.
func (s *Store) GetPage(id string) (*page.Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc string
	err := s.db.QueryRow(`SELECT document FROM pages WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: page %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read page %q: %w", id, err)
	}
	var m page.Meta
	if err := json.Unmarshal([]byte(doc), &m); err != nil {
		return nil, fmt.Errorf("corrupt page document %q: %w", id, err)
	}
	return &m, nil
}

// SavePage upserts a page, assigning an id and timestamps as needed.
func (s *Store) SavePage(m *page.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now

	return s.upsertPageTx(s.db, m)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func (s *Store) upsertPageTx(db execer, m *page.Meta) error {
	doc, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to marshal page %q: %w", m.ID, err)
	}
	_, err = db.Exec(`
		INSERT INTO pages(id, name, document, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			document = excluded.document,
			updated_at = excluded.updated_at`,
		m.ID, m.Name, string(doc), m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save page %q: %w", m.ID, err)
	}
	logging.StoreDebug("saved page %s (%s)", m.ID, m.Name)
	return nil
}

// SavePages replaces the full page list in one transaction. Used by the
// debounced cache flush so N coalesced mutations land as a single write.
func (s *Store) SavePages(pages []*page.Meta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM pages`); err != nil {
		return fmt.Errorf("failed to clear pages: %w", err)
	}
	now := time.Now().UTC()
	for _, m := range pages {
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = now
		}
		if err := s.upsertPageTx(tx, m); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit page list: %w", err)
	}
	logging.StoreDebug("flushed %d pages", len(pages))
	return nil
}

// DeletePage removes a page by id.
func (s *Store) DeletePage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`DELETE FROM pages WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete page %q: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: page %q", ErrNotFound, id)
	}
	return nil
}
