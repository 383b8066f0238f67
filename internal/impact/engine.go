package impact

import (
	"fmt"
	"math"
	"sort"

	"github.com/packrat-dev/packrat/internal/graph"
)

// Error is returned when an impact query references a symbol or file absent
// from the snapshot it runs against.
type Error struct {
	Ref string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("impact query %s: %v", e.Ref, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var errUnknownRef = fmt.Errorf("not in snapshot")

// Node is one affected symbol: its distance from the change set and a
// confidence that decays with distance. Nodes are produced fresh per query
// and never persisted.
type Node struct {
	SymbolID   string  `json:"symbol_id"`
	File       string  `json:"file"`
	Distance   int     `json:"distance"`
	Confidence float64 `json:"confidence"`
}

// Options bound the traversal. MaxDepth truncates, it never fails: nodes
// past the bound are simply excluded.
type Options struct {
	MaxDepth       int
	BaseConfidence float64
}

func DefaultOptions() Options {
	return Options{MaxDepth: 5, BaseConfidence: 0.8}
}

// Impact runs a breadth-first traversal over reverse edges starting from the
// changed files or symbol IDs. Distance 0 is the change set itself, 1 the
// direct dependents, >=2 the transitive closure up to MaxDepth. Cycles are
// cut by the visited set; ties at equal distance resolve by symbol ID.
func Impact(snap *graph.Snapshot, changed []string, opts Options) ([]Node, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultOptions().MaxDepth
	}
	if opts.BaseConfidence <= 0 || opts.BaseConfidence >= 1 {
		opts.BaseConfidence = DefaultOptions().BaseConfidence
	}

	seeds, err := seedSymbols(snap, changed)
	if err != nil {
		return nil, err
	}

	visited := make(map[string]int, len(seeds))
	frontier := make([]string, 0, len(seeds))
	for _, id := range seeds {
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = 0
		frontier = append(frontier, id)
	}
	sort.Strings(frontier)

	for depth := 1; depth <= opts.MaxDepth && len(frontier) > 0; depth++ {
		next := make([]string, 0)
		for _, id := range frontier {
			for _, edge := range snap.EdgesTo(id) {
				dependent := edge.SourceID
				if _, seen := visited[dependent]; seen {
					continue
				}
				visited[dependent] = depth
				next = append(next, dependent)
			}
		}
		sort.Strings(next)
		frontier = next
	}

	nodes := make([]Node, 0, len(visited))
	for id, distance := range visited {
		sym := snap.Symbols[id]
		nodes = append(nodes, Node{
			SymbolID:   id,
			File:       sym.File,
			Distance:   distance,
			Confidence: confidence(opts.BaseConfidence, distance),
		})
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Distance != nodes[j].Distance {
			return nodes[i].Distance < nodes[j].Distance
		}
		return nodes[i].SymbolID < nodes[j].SymbolID
	})
	return nodes, nil
}

// FileConfidence folds symbol nodes down to per-file confidence, keeping the
// strongest signal for each file.
func FileConfidence(nodes []Node) map[string]float64 {
	out := make(map[string]float64)
	for _, node := range nodes {
		if node.File == "" {
			continue
		}
		if existing, ok := out[node.File]; !ok || node.Confidence > existing {
			out[node.File] = node.Confidence
		}
	}
	return out
}

// seedSymbols expands the change set into symbol IDs. Entries may be file
// paths (all their symbols seed) or symbol IDs. Unknown references fail the
// whole query; the snapshot is left untouched.
func seedSymbols(snap *graph.Snapshot, changed []string) ([]string, error) {
	seeds := make([]string, 0, len(changed))
	for _, ref := range changed {
		if snap.HasFile(ref) {
			seeds = append(seeds, snap.SymbolsForFile(ref)...)
			continue
		}
		if snap.HasSymbol(ref) {
			seeds = append(seeds, ref)
			continue
		}
		return nil, &Error{Ref: ref, Err: errUnknownRef}
	}
	return seeds, nil
}

func confidence(base float64, distance int) float64 {
	if distance == 0 {
		return 1.0
	}
	return math.Pow(base, float64(distance))
}
