package graph

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// IndexDir holds all durable state under the project root.
	IndexDir  = ".packrat"
	indexFile = "index.db"

	schemaVersion = "1"
)

// ErrCorruptIndex means the persisted graph failed validation on open and
// must be rebuilt from the source tree.
var ErrCorruptIndex = errors.New("persisted index failed validation")

// Store is the durable symbol graph. All mutations are transactional per
// file: either the file's full symbol/edge set commits or none of it does.
// A single writer is enforced internally; snapshots are immutable and safe
// to read concurrently.
type Store struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	version uint64
}

const schema = `
CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS files (
	path            TEXT PRIMARY KEY,
	fingerprint     TEXT NOT NULL,
	mtime_ns        INTEGER NOT NULL,
	indexed_version INTEGER NOT NULL,
	parse_error     TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS symbols (
	id         TEXT PRIMARY KEY,
	file_path  TEXT NOT NULL,
	name       TEXT NOT NULL,
	qualname   TEXT NOT NULL,
	kind       TEXT NOT NULL,
	line       INTEGER NOT NULL,
	end_line   INTEGER NOT NULL,
	start_byte INTEGER NOT NULL,
	end_byte   INTEGER NOT NULL,
	signature  TEXT NOT NULL DEFAULT '',
	doc        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS edges (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	source_id   TEXT NOT NULL,
	target_name TEXT NOT NULL,
	qualifier   TEXT NOT NULL DEFAULT '',
	kind        TEXT NOT NULL,
	line        INTEGER NOT NULL DEFAULT 0,
	file_path   TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS aliases (
	file_path TEXT NOT NULL,
	alias     TEXT NOT NULL,
	target    TEXT NOT NULL,
	PRIMARY KEY (file_path, alias)
);

CREATE INDEX IF NOT EXISTS idx_symbols_file ON symbols(file_path);
CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name);
CREATE INDEX IF NOT EXISTS idx_edges_file ON edges(file_path);
CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source_id);
CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target_name);
`

// Open creates or recovers the store under root/.packrat/index.db.
// Recovery relies on SQLite's WAL journal: an interrupted transaction rolls
// back to the last committed version on open. Validation failures return
// ErrCorruptIndex; callers should fall back to Rebuild.
func Open(root string) (*Store, error) {
	dir := filepath.Join(root, IndexDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	path := filepath.Join(dir, indexFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}
	// One connection keeps writer serialization simple and predictable.
	db.SetMaxOpenConns(1)

	store := &Store{db: db, path: path}
	if err := store.recover(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Version returns the monotonic counter stamped by the last commit.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// UpsertFile replaces everything the store holds for one file in a single
// transaction and bumps the graph version.
func (s *Store) UpsertFile(file IndexedFile, symbols []Symbol, edges []Edge, aliases map[string]string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteFileRows(tx, file.Path); err != nil {
		return 0, err
	}

	next := s.version + 1
	if _, err := tx.Exec(
		`INSERT INTO files (path, fingerprint, mtime_ns, indexed_version, parse_error)
		 VALUES (?, ?, ?, ?, ?)`,
		file.Path, file.Fingerprint, file.ModTime.UnixNano(), next, file.ParseError,
	); err != nil {
		return 0, fmt.Errorf("failed to upsert file %s: %w", file.Path, err)
	}

	for _, sym := range symbols {
		if _, err := tx.Exec(
			`INSERT INTO symbols (id, file_path, name, qualname, kind, line, end_line, start_byte, end_byte, signature, doc)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			sym.ID, sym.File, sym.Name, sym.QualName, sym.Kind,
			sym.Line, sym.EndLine, sym.StartByte, sym.EndByte, sym.Signature, sym.Doc,
		); err != nil {
			return 0, fmt.Errorf("failed to insert symbol %s: %w", sym.ID, err)
		}
	}

	for _, edge := range edges {
		if _, err := tx.Exec(
			`INSERT INTO edges (source_id, target_name, qualifier, kind, line, file_path)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			edge.SourceID, edge.TargetName, edge.Qualifier, string(edge.Kind), edge.Line, edge.File,
		); err != nil {
			return 0, fmt.Errorf("failed to insert edge from %s: %w", edge.SourceID, err)
		}
	}

	for alias, target := range aliases {
		if _, err := tx.Exec(
			`INSERT INTO aliases (file_path, alias, target) VALUES (?, ?, ?)`,
			file.Path, alias, target,
		); err != nil {
			return 0, fmt.Errorf("failed to insert alias %s: %w", alias, err)
		}
	}

	if err := s.bumpVersion(tx, next); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", file.Path, err)
	}
	s.version = next
	return next, nil
}

// RemoveFile deletes a file and everything it owns in a single transaction.
// Removing an unknown file is a no-op and does not bump the version.
func (s *Store) RemoveFile(path string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM files WHERE path = ?`, path).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check file %s: %w", path, err)
	}
	if exists == 0 {
		return s.version, nil
	}

	if err := deleteFileRows(tx, path); err != nil {
		return 0, err
	}

	next := s.version + 1
	if err := s.bumpVersion(tx, next); err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit removal of %s: %w", path, err)
	}
	s.version = next
	return next, nil
}

func deleteFileRows(tx *sql.Tx, path string) error {
	for _, stmt := range []string{
		`DELETE FROM files WHERE path = ?`,
		`DELETE FROM symbols WHERE file_path = ?`,
		`DELETE FROM edges WHERE file_path = ?`,
		`DELETE FROM aliases WHERE file_path = ?`,
	} {
		if _, err := tx.Exec(stmt, path); err != nil {
			return fmt.Errorf("failed to clear rows for %s: %w", path, err)
		}
	}
	return nil
}

func (s *Store) bumpVersion(tx *sql.Tx, next uint64) error {
	if _, err := tx.Exec(
		`INSERT INTO meta (key, value) VALUES ('graph_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", next),
	); err != nil {
		return fmt.Errorf("failed to bump graph version: %w", err)
	}
	return nil
}

// Counts is the index health surface consumed by status reporting.
type Counts struct {
	Files       int    `json:"files"`
	Symbols     int    `json:"symbols"`
	Edges       int    `json:"edges"`
	ParseErrors int    `json:"parse_errors"`
	Version     uint64 `json:"version"`
}

func (s *Store) Counts() (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := Counts{Version: s.version}
	rows := []struct {
		query string
		dst   *int
	}{
		{`SELECT COUNT(*) FROM files`, &counts.Files},
		{`SELECT COUNT(*) FROM symbols`, &counts.Symbols},
		{`SELECT COUNT(*) FROM edges`, &counts.Edges},
		{`SELECT COUNT(*) FROM files WHERE parse_error != ''`, &counts.ParseErrors},
	}
	for _, row := range rows {
		if err := s.db.QueryRow(row.query).Scan(row.dst); err != nil {
			return Counts{}, fmt.Errorf("failed to count: %w", err)
		}
	}
	return counts, nil
}

// Files returns the previous-snapshot metadata the scanner diffs against.
func (s *Store) Files() (map[string]IndexedFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT path, fingerprint, mtime_ns, indexed_version, parse_error FROM files`)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	defer rows.Close()

	out := make(map[string]IndexedFile)
	for rows.Next() {
		var file IndexedFile
		var mtimeNS int64
		if err := rows.Scan(&file.Path, &file.Fingerprint, &mtimeNS, &file.IndexedVersion, &file.ParseError); err != nil {
			return nil, fmt.Errorf("failed to scan file row: %w", err)
		}
		file.ModTime = timeFromUnixNano(mtimeNS)
		out[file.Path] = file
	}
	return out, rows.Err()
}

// Reset drops all graph rows inside one transaction. Used by the rebuild
// slow path before re-indexing from scratch.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin reset: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM files`,
		`DELETE FROM symbols`,
		`DELETE FROM edges`,
		`DELETE FROM aliases`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to reset: %w", err)
		}
	}

	next := s.version + 1
	if err := s.bumpVersion(tx, next); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit reset: %w", err)
	}
	s.version = next
	return nil
}
