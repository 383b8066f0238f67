package scanner

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/packrat-dev/packrat/internal/fileutil"
)

// FileMeta is what the scanner needs from a previous index snapshot to decide
// whether a file changed.
type FileMeta struct {
	Fingerprint string
	ModTime     time.Time
}

// Warning records a file the scan skipped instead of aborting.
type Warning struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Changes is the scan result: the diff against the previous snapshot plus the
// full current file set. Nothing is committed until the caller writes the
// result to the graph store.
type Changes struct {
	Added    []string
	Modified []string
	Deleted  []string
	Current  map[string]FileMeta
	Warnings []Warning
}

// defaultIgnores are always active; user rules from ignore files extend them.
var defaultIgnores = []string{
	".git/",
	".packrat/",
	"node_modules/",
	"vendor/",
	"dist/",
	"build/",
	"target/",
	"__pycache__/",
	".venv/",
}

// ignoreFiles are read from the project root when present.
var ignoreFiles = []string{".gitignore", ".packratignore"}

// Scan walks root and compares against the previous snapshot. supported
// filters by file type so non-source files never enter the index. Unreadable
// files become warnings; an unreadable root is an error.
func Scan(root string, previous map[string]FileMeta, supported func(string) bool) (*Changes, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("project root unreadable: %w", err)
	}

	matcher, err := loadIgnoreRules(root)
	if err != nil {
		return nil, err
	}

	changes := &Changes{
		Added:    make([]string, 0),
		Modified: make([]string, 0),
		Deleted:  make([]string, 0),
		Current:  make(map[string]FileMeta),
		Warnings: make([]Warning, 0),
	}

	err = filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			relPath := path
			if rel, relErr := filepath.Rel(root, path); relErr == nil {
				relPath = filepath.ToSlash(rel)
			}
			changes.Warnings = append(changes.Warnings, Warning{
				Path:    relPath,
				Message: fmt.Sprintf("walk error: %v", walkErr),
			})
			if info != nil && info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relPath, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		relPath = filepath.ToSlash(relPath)
		if relPath == "." {
			return nil
		}

		if matcher.MatchesPath(relPath) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if info.IsDir() {
			return nil
		}
		if !supported(relPath) {
			return nil
		}

		meta, ok := previous[relPath]
		if ok && meta.ModTime.Equal(info.ModTime()) {
			// mtime unchanged: trust the previous fingerprint, skip hashing.
			changes.Current[relPath] = meta
			return nil
		}

		fingerprint, hashErr := fileutil.HashFile(path)
		if hashErr != nil {
			changes.Warnings = append(changes.Warnings, Warning{
				Path:    relPath,
				Message: fmt.Sprintf("fingerprint failed: %v", hashErr),
			})
			// A read fault is not a deletion: keep the previously committed
			// state so the indexer does not purge the file's graph rows.
			if ok {
				changes.Current[relPath] = meta
			}
			return nil
		}

		changes.Current[relPath] = FileMeta{Fingerprint: fingerprint, ModTime: info.ModTime()}
		switch {
		case !ok:
			changes.Added = append(changes.Added, relPath)
		case meta.Fingerprint != fingerprint:
			changes.Modified = append(changes.Modified, relPath)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for path := range previous {
		if _, ok := changes.Current[path]; !ok {
			changes.Deleted = append(changes.Deleted, path)
		}
	}

	sort.Strings(changes.Added)
	sort.Strings(changes.Modified)
	sort.Strings(changes.Deleted)
	sort.Slice(changes.Warnings, func(i, j int) bool {
		return changes.Warnings[i].Path < changes.Warnings[j].Path
	})

	return changes, nil
}

func loadIgnoreRules(root string) (*gitignore.GitIgnore, error) {
	lines := make([]string, 0, len(defaultIgnores))
	lines = append(lines, defaultIgnores...)

	for _, name := range ignoreFiles {
		data, err := os.ReadFile(filepath.Join(root, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			lines = append(lines, line)
		}
	}

	return gitignore.CompileIgnoreLines(lines...), nil
}
