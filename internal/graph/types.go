package graph

import "time"

// EdgeKind is the closed set of relationships the graph stores.
type EdgeKind string

const (
	EdgeImports EdgeKind = "imports"
	EdgeCalls   EdgeKind = "calls"
)

// Symbol kind strings persisted in the store. They mirror the extractor's
// closed SymbolKind set.
const (
	SymbolKindModule   = "module"
	SymbolKindFunction = "func"
	SymbolKindClass    = "class"
	SymbolKindMethod   = "method"
	SymbolKindBinding  = "binding"
)

// IndexedFile is the per-file record the store owns. Fingerprint is the
// stable content hash; IndexedVersion is the graph version that last wrote
// this file.
type IndexedFile struct {
	Path           string
	Fingerprint    string
	ModTime        time.Time
	IndexedVersion uint64
	ParseError     string
}

// Symbol is the persisted form of a declaration. ID is unique within a
// snapshot (file path + kind + qualified name).
type Symbol struct {
	ID        string
	File      string
	Name      string
	QualName  string
	Kind      string
	Line      int
	EndLine   int
	StartByte int
	EndByte   int
	Signature string
	Doc       string
}

// Edge is a directed reference from a symbol to a name. Targets are stored
// unresolved; Snapshot resolves them against the full symbol set, so edges
// written before their target existed still connect once it does.
type Edge struct {
	SourceID   string
	TargetName string
	Qualifier  string
	Kind       EdgeKind
	Line       int
	// File owns the edge for transactional pruning.
	File string
}

// ResolvedEdge is an Edge whose target was matched to a stored symbol while
// building a snapshot. Unresolvable edges keep TargetID empty and surface the
// external name instead.
type ResolvedEdge struct {
	SourceID   string
	TargetID   string
	TargetName string
	Kind       EdgeKind
}
