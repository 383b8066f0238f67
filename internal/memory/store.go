package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/packrat-dev/packrat/internal/fileutil"
	"github.com/packrat-dev/packrat/internal/pack"
)

// Scope separates the three memory tiers. Global memory outlives projects,
// agent memory is per-assistant, session memory is per-conversation.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeAgent   Scope = "agent"
	ScopeSession Scope = "session"
)

// Record is one remembered note. Uses counts retrievals and feeds the
// frequency score; Persona is an optional relevance hint in [0,1].
type Record struct {
	ID        string    `json:"id"`
	Ref       string    `json:"ref,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	Uses      int       `json:"uses,omitempty"`
	Persona   float64   `json:"persona,omitempty"`
}

// Store is a JSONL-backed memory tier. One file per scope, append-only in
// the common path; Touch rewrites in place.
type Store struct {
	path  string
	scope Scope
}

// Open returns the store for one scope under dir. The file is created lazily
// on first append.
func Open(dir string, scope Scope) *Store {
	return &Store{
		path:  filepath.Join(dir, string(scope)+".jsonl"),
		scope: scope,
	}
}

func (s *Store) Scope() Scope { return s.scope }

// Append writes one record. A missing ID is derived from the content hash, a
// missing timestamp from the clock.
func (s *Store) Append(rec Record) error {
	if rec.Content == "" {
		return fmt.Errorf("memory record has no content")
	}
	if rec.ID == "" {
		rec.ID = fileutil.HashBytes([]byte(rec.Content))
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create memory dir: %w", err)
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode memory record: %w", err)
	}
	line = append(line, '\n')

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s memory: %w", s.scope, err)
	}
	defer f.Close()
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to append %s memory: %w", s.scope, err)
	}
	return nil
}

// Records loads every record in file order. A missing file is an empty
// store.
func (s *Store) Records() ([]Record, error) {
	records, err := fileutil.ReadJSONL[Record](s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s memory: %w", s.scope, err)
	}
	return records, nil
}

// Touch bumps the use counter for the given record IDs and rewrites the
// store. Frequency scoring reads the counter on the next retrieval.
func (s *Store) Touch(ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	records, err := s.Records()
	if err != nil {
		return err
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	changed := false
	for i := range records {
		if wanted[records[i].ID] {
			records[i].Uses++
			changed = true
		}
	}
	if !changed {
		return nil
	}
	data, err := fileutil.EncodeJSONL(records)
	if err != nil {
		return fmt.Errorf("failed to encode %s memory: %w", s.scope, err)
	}
	if err := fileutil.WriteIfChanged(s.path, data); err != nil {
		return fmt.Errorf("failed to rewrite %s memory: %w", s.scope, err)
	}
	return nil
}

// TouchByFingerprint bumps use counters for the records whose content hash is
// in fingerprints. Pack assembly calls this for the memory entries it selects,
// so the frequency score reflects what actually gets packed.
func (s *Store) TouchByFingerprint(fingerprints ...string) error {
	if len(fingerprints) == 0 {
		return nil
	}
	wanted := make(map[string]bool, len(fingerprints))
	for _, fp := range fingerprints {
		wanted[fp] = true
	}
	records, err := s.Records()
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(fingerprints))
	for _, rec := range records {
		if wanted[fileutil.HashBytes([]byte(rec.Content))] {
			ids = append(ids, rec.ID)
		}
	}
	return s.Touch(ids...)
}

// Retrieve scores records against the query and returns the best matches as
// pack candidates. Records with no lexical overlap are dropped; the ranker's
// floor score covers serendipity, not the store.
func (s *Store) Retrieve(query string, limit int) ([]pack.Candidate, error) {
	records, err := s.Records()
	if err != nil {
		return nil, err
	}
	matches := searchRecords(records, query, limit)

	candidates := make([]pack.Candidate, 0, len(matches))
	for _, rec := range matches {
		candidates = append(candidates, pack.Candidate{
			Source:      s.Source(),
			Ref:         firstNonEmpty(rec.Ref, rec.ID),
			Content:     rec.Content,
			Fingerprint: fileutil.HashBytes([]byte(rec.Content)),
			CreatedAt:   rec.CreatedAt,
			Frequency:   frequency(rec.Uses),
			Persona:     rec.Persona,
		})
	}
	return candidates, nil
}

// Source is the candidate origin this store's retrievals carry.
func (s *Store) Source() pack.Source {
	switch s.scope {
	case ScopeAgent:
		return pack.SourceAgentMemory
	case ScopeSession:
		return pack.SourceSessionMemory
	default:
		return pack.SourceGlobalMemory
	}
}

// frequency saturates toward 1 as a record keeps getting used.
func frequency(uses int) float64 {
	if uses <= 0 {
		return 0
	}
	return float64(uses) / float64(uses+5)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
