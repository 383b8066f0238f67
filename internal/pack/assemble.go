package pack

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/impact"
)

// GraphCandidates turns impacted symbols into source-excerpt candidates by
// slicing each symbol's byte range out of its defining file. Module symbols
// are skipped when the file declares anything narrower, so a whole-file blob
// never shadows its own functions. Unreadable files are skipped; the next
// index pass reconciles them.
func GraphCandidates(root string, snap *graph.Snapshot, nodes []impact.Node) []Candidate {
	contents := make(map[string][]byte)
	candidates := make([]Candidate, 0, len(nodes))

	for _, node := range nodes {
		sym, ok := snap.Symbols[node.SymbolID]
		if !ok {
			continue
		}
		if sym.Kind == graph.SymbolKindModule && len(snap.SymbolsForFile(sym.File)) > 1 {
			continue
		}

		data, ok := contents[sym.File]
		if !ok {
			raw, err := os.ReadFile(filepath.Join(root, sym.File))
			if err != nil {
				contents[sym.File] = nil
				continue
			}
			data = raw
			contents[sym.File] = raw
		}
		if data == nil {
			continue
		}

		excerpt := sliceRange(data, sym.StartByte, sym.EndByte)
		if excerpt == "" {
			continue
		}

		candidate := Candidate{
			Source:  SourceGraph,
			Ref:     node.SymbolID,
			Content: fmt.Sprintf("# %s:%d %s\n%s", sym.File, sym.Line, sym.QualName, excerpt),
		}
		if file, ok := snap.Files[sym.File]; ok {
			candidate.CreatedAt = file.ModTime
		}
		candidates = append(candidates, candidate)
	}
	return candidates
}

func sliceRange(data []byte, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(data) {
		end = len(data)
	}
	if start >= end {
		return ""
	}
	return string(data[start:end])
}
