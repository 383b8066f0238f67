package graph

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Snapshot is an immutable view of the graph at a single version. Impact
// queries and pack assembly read snapshots only; a commit that lands after a
// snapshot was taken is never visible through it.
type Snapshot struct {
	Version uint64

	Files   map[string]IndexedFile
	Symbols map[string]Symbol

	fileSymbols map[string][]string
	out         map[string][]ResolvedEdge
	in          map[string][]ResolvedEdge
}

// Snapshot loads the full graph into an immutable in-memory view and
// resolves edge targets against the complete symbol set. Resolution at read
// time means edges written before their target file was indexed still
// connect.
func (s *Store) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := &Snapshot{
		Version:     s.version,
		Files:       make(map[string]IndexedFile),
		Symbols:     make(map[string]Symbol),
		fileSymbols: make(map[string][]string),
		out:         make(map[string][]ResolvedEdge),
		in:          make(map[string][]ResolvedEdge),
	}

	files, err := s.loadFilesLocked()
	if err != nil {
		return nil, err
	}
	snap.Files = files

	if err := s.loadSymbols(snap); err != nil {
		return nil, err
	}

	rawEdges, err := s.loadEdges()
	if err != nil {
		return nil, err
	}
	aliases, err := s.loadAliases()
	if err != nil {
		return nil, err
	}

	resolveEdges(snap, rawEdges, aliases)
	return snap, nil
}

func (s *Store) loadFilesLocked() (map[string]IndexedFile, error) {
	rows, err := s.db.Query(`SELECT path, fingerprint, mtime_ns, indexed_version, parse_error FROM files`)
	if err != nil {
		return nil, fmt.Errorf("failed to load files: %w", err)
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

func (s *Store) loadSymbols(snap *Snapshot) error {
	rows, err := s.db.Query(
		`SELECT id, file_path, name, qualname, kind, line, end_line, start_byte, end_byte, signature, doc FROM symbols`,
	)
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(
			&sym.ID, &sym.File, &sym.Name, &sym.QualName, &sym.Kind,
			&sym.Line, &sym.EndLine, &sym.StartByte, &sym.EndByte, &sym.Signature, &sym.Doc,
		); err != nil {
			return fmt.Errorf("failed to scan symbol row: %w", err)
		}
		snap.Symbols[sym.ID] = sym
		snap.fileSymbols[sym.File] = append(snap.fileSymbols[sym.File], sym.ID)
	}
	for file := range snap.fileSymbols {
		sort.Strings(snap.fileSymbols[file])
	}
	return rows.Err()
}

func (s *Store) loadEdges() ([]Edge, error) {
	rows, err := s.db.Query(`SELECT source_id, target_name, qualifier, kind, line, file_path FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		var edge Edge
		var kind string
		if err := rows.Scan(&edge.SourceID, &edge.TargetName, &edge.Qualifier, &kind, &edge.Line, &edge.File); err != nil {
			return nil, fmt.Errorf("failed to scan edge row: %w", err)
		}
		edge.Kind = EdgeKind(kind)
		out = append(out, edge)
	}
	return out, rows.Err()
}

func (s *Store) loadAliases() (map[string]map[string]string, error) {
	rows, err := s.db.Query(`SELECT file_path, alias, target FROM aliases`)
	if err != nil {
		return nil, fmt.Errorf("failed to load aliases: %w", err)
	}
	defer rows.Close()

	out := make(map[string]map[string]string)
	for rows.Next() {
		var file, alias, target string
		if err := rows.Scan(&file, &alias, &target); err != nil {
			return nil, fmt.Errorf("failed to scan alias row: %w", err)
		}
		if out[file] == nil {
			out[file] = make(map[string]string)
		}
		out[file][alias] = target
	}
	return out, rows.Err()
}

// EdgesFrom returns outgoing edges of a symbol, sorted by target ID.
func (snap *Snapshot) EdgesFrom(symbolID string) []ResolvedEdge {
	return snap.out[symbolID]
}

// EdgesTo returns incoming edges of a symbol, sorted by source ID.
func (snap *Snapshot) EdgesTo(symbolID string) []ResolvedEdge {
	return snap.in[symbolID]
}

// SymbolsForFile returns the IDs of every symbol declared in a file.
func (snap *Snapshot) SymbolsForFile(path string) []string {
	return snap.fileSymbols[path]
}

func (snap *Snapshot) HasFile(path string) bool {
	_, ok := snap.Files[path]
	return ok
}

func (snap *Snapshot) HasSymbol(id string) bool {
	_, ok := snap.Symbols[id]
	return ok
}

// lookups indexes symbols by name with file and module scope, mirroring how
// the extractor's references are qualified.
type lookups struct {
	global   map[string][]string
	byFile   map[string]map[string][]string
	byModule map[string]map[string][]string
	// aliasFiles maps file -> alias -> candidate target files.
	aliasFiles map[string]map[string][]string
	moduleSyms map[string]string
}

func resolveEdges(snap *Snapshot, rawEdges []Edge, aliases map[string]map[string]string) {
	l := buildLookups(snap, aliases)

	for _, edge := range rawEdges {
		resolved := ResolvedEdge{
			SourceID:   edge.SourceID,
			TargetName: edge.TargetName,
			Kind:       edge.Kind,
		}

		switch edge.Kind {
		case EdgeImports:
			if id, ok := l.resolveImport(edge.TargetName); ok {
				resolved.TargetID = id
			}
		case EdgeCalls:
			if id, ok := l.resolveCall(edge.File, edge.TargetName, edge.Qualifier); ok {
				resolved.TargetID = id
			}
		}

		if resolved.TargetID == edge.SourceID {
			continue
		}
		snap.out[edge.SourceID] = append(snap.out[edge.SourceID], resolved)
		if resolved.TargetID != "" {
			snap.in[resolved.TargetID] = append(snap.in[resolved.TargetID], resolved)
		}
	}

	for id := range snap.out {
		dedupeResolved(snap.out, id, func(e ResolvedEdge) string {
			return string(e.Kind) + "|" + e.TargetID + "|" + e.TargetName
		})
	}
	for id := range snap.in {
		dedupeResolved(snap.in, id, func(e ResolvedEdge) string {
			return string(e.Kind) + "|" + e.SourceID
		})
	}
}

func dedupeResolved(edges map[string][]ResolvedEdge, id string, key func(ResolvedEdge) string) {
	list := edges[id]
	seen := make(map[string]bool, len(list))
	out := list[:0]
	for _, edge := range list {
		k := key(edge)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TargetID != out[j].TargetID {
			return out[i].TargetID < out[j].TargetID
		}
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].TargetName < out[j].TargetName
	})
	edges[id] = out
}

func buildLookups(snap *Snapshot, aliases map[string]map[string]string) *lookups {
	l := &lookups{
		global:     make(map[string][]string),
		byFile:     make(map[string]map[string][]string),
		byModule:   make(map[string]map[string][]string),
		aliasFiles: make(map[string]map[string][]string),
		moduleSyms: make(map[string]string),
	}

	allFiles := make([]string, 0, len(snap.Files))
	for path := range snap.Files {
		allFiles = append(allFiles, path)
	}
	sort.Strings(allFiles)

	for _, file := range allFiles {
		for _, id := range snap.fileSymbols[file] {
			sym := snap.Symbols[id]
			if sym.Kind == SymbolKindModule {
				l.moduleSyms[file] = id
				continue
			}
			l.global[sym.Name] = append(l.global[sym.Name], id)
			if l.byFile[file] == nil {
				l.byFile[file] = make(map[string][]string)
			}
			l.byFile[file][sym.Name] = append(l.byFile[file][sym.Name], id)

			module := moduleOf(file)
			if l.byModule[module] == nil {
				l.byModule[module] = make(map[string][]string)
			}
			l.byModule[module][sym.Name] = append(l.byModule[module][sym.Name], id)
		}
	}

	for file, byAlias := range aliases {
		for alias, target := range byAlias {
			module := target
			if idx := strings.Index(module, "#"); idx != -1 {
				module = module[:idx]
			}
			candidates := moduleFileCandidates(module, allFiles)
			if len(candidates) == 0 {
				continue
			}
			if l.aliasFiles[file] == nil {
				l.aliasFiles[file] = make(map[string][]string)
			}
			l.aliasFiles[file][alias] = candidates
		}
	}

	return l
}

func (l *lookups) resolveCall(sourceFile, name, qualifier string) (string, bool) {
	if byName := l.byFile[sourceFile]; byName != nil && qualifier == "" {
		if id, ok := chooseUnique(byName[name]); ok {
			return id, true
		}
	}

	if qualifier != "" {
		qualifier = primaryQualifier(qualifier)
		if byAlias := l.aliasFiles[sourceFile]; byAlias != nil {
			if files, exists := byAlias[qualifier]; exists {
				ids := make([]string, 0)
				for _, file := range files {
					ids = append(ids, l.byFile[file][name]...)
				}
				if id, ok := chooseUnique(ids); ok {
					return id, true
				}
			}
		}
		if qualifier != "self" && qualifier != "cls" {
			return "", false
		}
		// Receiver-scoped calls resolve within the defining file.
		if byName := l.byFile[sourceFile]; byName != nil {
			if id, ok := chooseUnique(byName[name]); ok {
				return id, true
			}
		}
		return "", false
	}

	module := moduleOf(sourceFile)
	if byName := l.byModule[module]; byName != nil {
		if id, ok := chooseUnique(byName[name]); ok {
			return id, true
		}
	}

	return chooseUnique(l.global[name])
}

func (l *lookups) resolveImport(module string) (string, bool) {
	files := make([]string, 0, len(l.moduleSyms))
	for file := range l.moduleSyms {
		files = append(files, file)
	}
	sort.Strings(files)

	candidates := moduleFileCandidates(module, files)
	if len(candidates) != 1 {
		return "", false
	}
	return l.moduleSyms[candidates[0]], true
}

func chooseUnique(ids []string) (string, bool) {
	if len(ids) == 0 {
		return "", false
	}
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}
	if len(unique) != 1 {
		return "", false
	}
	return unique[0], true
}

// moduleFileCandidates matches a dotted module path to indexed files:
// pkg.mod matches pkg/mod.py; a package import matches its __init__.py.
func moduleFileCandidates(module string, allFiles []string) []string {
	module = strings.TrimSpace(module)
	if module == "" {
		return nil
	}
	asPath := strings.ReplaceAll(module, ".", "/")

	matches := make([]string, 0)
	for _, file := range allFiles {
		noExt := strings.TrimSuffix(file, filepath.Ext(file))
		if noExt == asPath || strings.HasSuffix(noExt, "/"+asPath) {
			matches = append(matches, file)
			continue
		}
		if strings.HasSuffix(noExt, "/__init__") {
			pkg := strings.TrimSuffix(noExt, "/__init__")
			if pkg == asPath || strings.HasSuffix(pkg, "/"+asPath) {
				matches = append(matches, file)
			}
		}
	}
	sort.Strings(matches)
	return matches
}

func primaryQualifier(value string) string {
	value = strings.TrimSpace(value)
	if idx := strings.Index(value, "."); idx != -1 {
		value = value[:idx]
	}
	return value
}

func moduleOf(file string) string {
	dir := filepath.Dir(file)
	if dir == "." {
		return "root"
	}
	parts := strings.Split(filepath.ToSlash(dir), "/")
	return parts[0]
}
