package graph

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// recover validates the persisted graph on open and loads the version
// counter. SQLite's WAL journal already rolls an interrupted transaction
// back to the last committed state; what remains is detecting corruption
// that survived the rollback (truncated pages, stale schema) so the caller
// can take the rebuild slow path.
func (s *Store) recover() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	var result string
	if err := s.db.QueryRow(`PRAGMA quick_check`).Scan(&result); err != nil || result != "ok" {
		return fmt.Errorf("%w: quick_check reported %q", ErrCorruptIndex, result)
	}

	stored, err := s.metaValue("schema_version")
	if err != nil {
		return err
	}
	switch stored {
	case "":
		if _, err := s.db.Exec(
			`INSERT INTO meta (key, value) VALUES ('schema_version', ?)`, schemaVersion,
		); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	case schemaVersion:
		// current
	default:
		return fmt.Errorf("%w: schema version %s, expected %s", ErrCorruptIndex, stored, schemaVersion)
	}

	versionStr, err := s.metaValue("graph_version")
	if err != nil {
		return err
	}
	if versionStr == "" {
		s.version = 0
	} else {
		version, err := strconv.ParseUint(versionStr, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: unparseable graph version %q", ErrCorruptIndex, versionStr)
		}
		s.version = version
	}

	// Orphaned symbol rows mean a partial write slipped past the journal
	// (e.g. the file was copied mid-write). Treat as untrustworthy.
	var orphans int
	if err := s.db.QueryRow(
		`SELECT COUNT(*) FROM symbols WHERE file_path NOT IN (SELECT path FROM files)`,
	).Scan(&orphans); err != nil {
		return fmt.Errorf("failed to validate symbols: %w", err)
	}
	if orphans > 0 {
		return fmt.Errorf("%w: %d symbols reference unindexed files", ErrCorruptIndex, orphans)
	}

	return nil
}

func (s *Store) metaValue(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read meta %s: %w", key, err)
	}
	return value, nil
}

func timeFromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns)
}
