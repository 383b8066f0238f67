package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/packrat-dev/packrat/internal/fileutil"
)

const defaultCacheSize = 512

// Extractor parses source files into symbols and raw references. Results are
// cached by content fingerprint, so re-extracting an unchanged file is a
// no-op that returns the identical result.
//
// Extractor is not safe for concurrent use; the index has a single writer.
type Extractor struct {
	python *pythonParser
	cache  *lru.Cache[string, *FileExtract]
}

func NewExtractor() *Extractor {
	cache, _ := lru.New[string, *FileExtract](defaultCacheSize)
	return &Extractor{
		python: newPythonParser(),
		cache:  cache,
	}
}

// Supported reports whether the extractor models this file type.
func (e *Extractor) Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, supported := range e.python.extensions() {
		if ext == supported {
			return true
		}
	}
	return false
}

// Extract parses one file. The path must be relative and slash-normalized.
// A parse failure returns an empty FileExtract and a ParseIssue instead of an
// error; only programmer misuse (unsupported file type) errors.
func (e *Extractor) Extract(path string, content []byte) (*FileExtract, *ParseIssue, error) {
	if !e.Supported(path) {
		return nil, nil, fmt.Errorf("unsupported file type: %s", path)
	}

	fingerprint := fileutil.HashBytes(content)
	if cached, ok := e.cache.Get(cacheKey(path, fingerprint)); ok {
		return cached, nil, nil
	}

	result, err := e.python.parse(path, content)
	if err != nil {
		issue := &ParseIssue{File: path, Message: err.Error()}
		empty := &FileExtract{Path: path, Fingerprint: fingerprint}
		return empty, issue, nil
	}

	result.Fingerprint = fingerprint
	result.Imports = normalizeStrings(result.Imports)
	result.ImportAliases = normalizeImportAliases(result.ImportAliases)
	for i := range result.Symbols {
		result.Symbols[i].Calls = normalizeCallSites(result.Symbols[i].Calls)
		result.Symbols[i].ID = StableSymbolID(path, result.Symbols[i])
	}
	dedupeSymbols(result)

	e.cache.Add(cacheKey(path, fingerprint), result)
	return result, nil, nil
}

func cacheKey(path, fingerprint string) string {
	return path + "@" + fingerprint
}

// dedupeSymbols keeps the first declaration when a qualified name repeats
// (Python allows redefinition; the index needs unique IDs per snapshot).
func dedupeSymbols(result *FileExtract) {
	seen := make(map[string]bool, len(result.Symbols))
	out := result.Symbols[:0]
	for _, sym := range result.Symbols {
		if seen[sym.ID] {
			continue
		}
		seen[sym.ID] = true
		out = append(out, sym)
	}
	result.Symbols = out
}
