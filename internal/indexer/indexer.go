package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/packrat-dev/packrat/internal/extract"
	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/scanner"
)

// IndexError wraps scan, extract, and persist failures with enough context
// for the caller to act on.
type IndexError struct {
	Op   string
	Path string
	Err  error
}

func (e *IndexError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("index %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("index %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// Indexer drives scan -> extract -> commit. It is the single writer of the
// graph store; callers must not run two Indexer operations concurrently.
type Indexer struct {
	root      string
	store     *graph.Store
	extractor *extract.Extractor
	logger    *slog.Logger
}

// Result summarizes one index pass.
type Result struct {
	Scanned     int                  `json:"scanned"`
	Indexed     int                  `json:"indexed"`
	Removed     int                  `json:"removed"`
	Version     uint64               `json:"version"`
	Warnings    []scanner.Warning    `json:"warnings,omitempty"`
	ParseErrors []extract.ParseIssue `json:"parse_errors,omitempty"`
}

func New(root string, store *graph.Store, extractor *extract.Extractor, logger *slog.Logger) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		root:      root,
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// Run performs an incremental index pass: scan against the stored snapshot,
// re-extract only changed files, commit each file in its own transaction.
// Cancellation is honored between files; everything committed before the
// cancellation remains valid.
func (ix *Indexer) Run(ctx context.Context) (*Result, error) {
	previous, err := ix.store.Files()
	if err != nil {
		return nil, &IndexError{Op: "load snapshot", Err: err}
	}

	prevMeta := make(map[string]scanner.FileMeta, len(previous))
	for path, file := range previous {
		prevMeta[path] = scanner.FileMeta{Fingerprint: file.Fingerprint, ModTime: file.ModTime}
	}

	changes, err := scanner.Scan(ix.root, prevMeta, ix.extractor.Supported)
	if err != nil {
		return nil, &IndexError{Op: "scan", Path: ix.root, Err: err}
	}

	result := &Result{
		Scanned:  len(changes.Current),
		Warnings: changes.Warnings,
	}

	toIndex := append(append([]string{}, changes.Added...), changes.Modified...)
	for _, path := range toIndex {
		if err := ctx.Err(); err != nil {
			return result, &IndexError{Op: "index", Path: path, Err: err}
		}
		if err := ix.indexFile(path, changes.Current[path], result); err != nil {
			return result, err
		}
		result.Indexed++
	}

	for _, path := range changes.Deleted {
		if err := ctx.Err(); err != nil {
			return result, &IndexError{Op: "remove", Path: path, Err: err}
		}
		version, err := ix.store.RemoveFile(path)
		if err != nil {
			return result, &IndexError{Op: "remove", Path: path, Err: err}
		}
		result.Version = version
		result.Removed++
	}

	result.Version = ix.store.Version()
	ix.logger.Debug("index pass complete",
		"scanned", result.Scanned,
		"indexed", result.Indexed,
		"removed", result.Removed,
		"version", result.Version,
	)
	return result, nil
}

// Rebuild is the slow-path fallback: drop the persisted graph and re-index
// the whole tree from scratch. Used when Open reports a corrupt index or the
// snapshot is otherwise untrustworthy.
func (ix *Indexer) Rebuild(ctx context.Context) (*Result, error) {
	if err := ix.store.Reset(); err != nil {
		return nil, &IndexError{Op: "reset", Err: err}
	}
	return ix.Run(ctx)
}

// Status exposes the index health surface.
func (ix *Indexer) Status() (graph.Counts, error) {
	counts, err := ix.store.Counts()
	if err != nil {
		return graph.Counts{}, &IndexError{Op: "status", Err: err}
	}
	return counts, nil
}

func (ix *Indexer) indexFile(path string, meta scanner.FileMeta, result *Result) error {
	content, err := os.ReadFile(filepath.Join(ix.root, path))
	if err != nil {
		// The file vanished between scan and read; skip, next pass removes it.
		result.Warnings = append(result.Warnings, scanner.Warning{
			Path:    path,
			Message: fmt.Sprintf("read failed: %v", err),
		})
		return nil
	}

	extracted, issue, err := ix.extractor.Extract(path, content)
	if err != nil {
		return &IndexError{Op: "extract", Path: path, Err: err}
	}

	file := graph.IndexedFile{
		Path:        path,
		Fingerprint: extracted.Fingerprint,
		ModTime:     meta.ModTime,
	}
	if issue != nil {
		file.ParseError = issue.Message
		result.ParseErrors = append(result.ParseErrors, *issue)
		ix.logger.Warn("parse failed", "path", path, "error", issue.Message)
	}

	symbols, edges, aliases := toGraphRows(extracted)
	version, err := ix.store.UpsertFile(file, symbols, edges, aliases)
	if err != nil {
		return &IndexError{Op: "commit", Path: path, Err: err}
	}
	result.Version = version
	return nil
}

// toGraphRows converts an extraction into persisted rows: one symbol row per
// declaration, import edges off the module symbol, call edges off the
// declaring symbol.
func toGraphRows(extracted *extract.FileExtract) ([]graph.Symbol, []graph.Edge, map[string]string) {
	symbols := make([]graph.Symbol, 0, len(extracted.Symbols))
	edges := make([]graph.Edge, 0)

	for _, sym := range extracted.Symbols {
		symbols = append(symbols, graph.Symbol{
			ID:        sym.ID,
			File:      extracted.Path,
			Name:      sym.Name,
			QualName:  sym.QualName,
			Kind:      sym.Kind.String(),
			Line:      sym.Line,
			EndLine:   sym.EndLine,
			StartByte: sym.StartByte,
			EndByte:   sym.EndByte,
			Signature: sym.Signature,
			Doc:       sym.Doc,
		})

		for _, call := range sym.Calls {
			edges = append(edges, graph.Edge{
				SourceID:   sym.ID,
				TargetName: call.Name,
				Qualifier:  call.Qualifier,
				Kind:       graph.EdgeCalls,
				Line:       call.Line,
				File:       extracted.Path,
			})
		}
	}

	moduleID := extract.FileSymbolID(extracted.Path)
	for _, module := range extracted.Imports {
		edges = append(edges, graph.Edge{
			SourceID:   moduleID,
			TargetName: module,
			Kind:       graph.EdgeImports,
			File:       extracted.Path,
		})
	}

	return symbols, edges, extracted.ImportAliases
}
