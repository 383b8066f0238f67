package impact

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packrat-dev/packrat/internal/graph"
)

func moduleSymbol(path string) graph.Symbol {
	return graph.Symbol{
		ID:       path + "|module|" + path,
		File:     path,
		Name:     path,
		QualName: path,
		Kind:     graph.SymbolKindModule,
	}
}

func funcSymbol(path, name string) graph.Symbol {
	return graph.Symbol{
		ID:       path + "|func|" + name,
		File:     path,
		Name:     name,
		QualName: name,
		Kind:     graph.SymbolKindFunction,
	}
}

func callEdge(sourceID, target, file string) graph.Edge {
	return graph.Edge{SourceID: sourceID, TargetName: target, Kind: graph.EdgeCalls, File: file}
}

// chainSnapshot builds the canonical three-file project: a.py defines f,
// b.py's g calls f, c.py's h calls g.
func chainSnapshot(t *testing.T) *graph.Snapshot {
	t.Helper()
	store, err := graph.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	file := func(path string) graph.IndexedFile {
		return graph.IndexedFile{Path: path, Fingerprint: "fp", ModTime: time.Unix(1700000000, 0)}
	}

	_, err = store.UpsertFile(file("a.py"), []graph.Symbol{moduleSymbol("a.py"), funcSymbol("a.py", "f")}, nil, nil)
	require.NoError(t, err)
	_, err = store.UpsertFile(file("b.py"), []graph.Symbol{moduleSymbol("b.py"), funcSymbol("b.py", "g")},
		[]graph.Edge{callEdge("b.py|func|g", "f", "b.py")}, nil)
	require.NoError(t, err)
	_, err = store.UpsertFile(file("c.py"), []graph.Symbol{moduleSymbol("c.py"), funcSymbol("c.py", "h")},
		[]graph.Edge{callEdge("c.py|func|h", "g", "c.py")}, nil)
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	return snap
}

func nodeFor(nodes []Node, symbolID string) (Node, bool) {
	for _, node := range nodes {
		if node.SymbolID == symbolID {
			return node, true
		}
	}
	return Node{}, false
}

func TestImpactChain(t *testing.T) {
	snap := chainSnapshot(t)

	nodes, err := Impact(snap, []string{"a.py"}, Options{MaxDepth: 5, BaseConfidence: 0.8})
	require.NoError(t, err)

	g, ok := nodeFor(nodes, "b.py|func|g")
	require.True(t, ok, "b.py caller missing from impact set")
	assert.Equal(t, 1, g.Distance)
	assert.InDelta(t, 0.8, g.Confidence, 1e-9)

	h, ok := nodeFor(nodes, "c.py|func|h")
	require.True(t, ok, "c.py transitive caller missing")
	assert.Equal(t, 2, h.Distance)
	assert.InDelta(t, 0.64, h.Confidence, 1e-9)

	assert.Greater(t, g.Confidence, h.Confidence)
}

func TestImpactSeedsHaveFullConfidence(t *testing.T) {
	snap := chainSnapshot(t)

	nodes, err := Impact(snap, []string{"a.py|func|f"}, DefaultOptions())
	require.NoError(t, err)

	seed, ok := nodeFor(nodes, "a.py|func|f")
	require.True(t, ok)
	assert.Equal(t, 0, seed.Distance)
	assert.Equal(t, 1.0, seed.Confidence)
}

func TestImpactMonotonicity(t *testing.T) {
	snap := chainSnapshot(t)

	nodes, err := Impact(snap, []string{"a.py"}, DefaultOptions())
	require.NoError(t, err)

	for i := 1; i < len(nodes); i++ {
		assert.GreaterOrEqual(t, nodes[i].Distance, nodes[i-1].Distance)
		if nodes[i].Distance > nodes[i-1].Distance {
			assert.Less(t, nodes[i].Confidence, nodes[i-1].Confidence)
		}
	}
}

func TestImpactMaxDepthTruncates(t *testing.T) {
	snap := chainSnapshot(t)

	nodes, err := Impact(snap, []string{"a.py"}, Options{MaxDepth: 1, BaseConfidence: 0.8})
	require.NoError(t, err)

	_, ok := nodeFor(nodes, "c.py|func|h")
	assert.False(t, ok, "distance-2 node must be excluded at max depth 1")
	_, ok = nodeFor(nodes, "b.py|func|g")
	assert.True(t, ok)
}

func TestImpactUnknownRef(t *testing.T) {
	snap := chainSnapshot(t)

	_, err := Impact(snap, []string{"nope.py"}, DefaultOptions())
	require.Error(t, err)
	var impactErr *Error
	require.ErrorAs(t, err, &impactErr)
	assert.Equal(t, "nope.py", impactErr.Ref)
}

func TestImpactTerminatesOnCycles(t *testing.T) {
	store, err := graph.Open(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	file := func(path string) graph.IndexedFile {
		return graph.IndexedFile{Path: path, Fingerprint: "fp", ModTime: time.Unix(1700000000, 0)}
	}
	// x calls y, y calls x: mutual recursion across files.
	_, err = store.UpsertFile(file("x.py"), []graph.Symbol{moduleSymbol("x.py"), funcSymbol("x.py", "ping")},
		[]graph.Edge{callEdge("x.py|func|ping", "pong", "x.py")}, nil)
	require.NoError(t, err)
	_, err = store.UpsertFile(file("y.py"), []graph.Symbol{moduleSymbol("y.py"), funcSymbol("y.py", "pong")},
		[]graph.Edge{callEdge("y.py|func|pong", "ping", "y.py")}, nil)
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)

	nodes, err := Impact(snap, []string{"x.py|func|ping"}, Options{MaxDepth: 10, BaseConfidence: 0.8})
	require.NoError(t, err)

	pong, ok := nodeFor(nodes, "y.py|func|pong")
	require.True(t, ok)
	assert.Equal(t, 1, pong.Distance)
	ping, _ := nodeFor(nodes, "x.py|func|ping")
	assert.Equal(t, 0, ping.Distance)
}

func TestImpactDeterministic(t *testing.T) {
	snap := chainSnapshot(t)

	first, err := Impact(snap, []string{"a.py"}, DefaultOptions())
	require.NoError(t, err)
	second, err := Impact(snap, []string{"a.py"}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFileConfidence(t *testing.T) {
	nodes := []Node{
		{SymbolID: "a.py|func|f", File: "a.py", Distance: 0, Confidence: 1.0},
		{SymbolID: "a.py|module|a.py", File: "a.py", Distance: 1, Confidence: 0.8},
		{SymbolID: "b.py|func|g", File: "b.py", Distance: 2, Confidence: 0.64},
	}
	byFile := FileConfidence(nodes)
	assert.Equal(t, 1.0, byFile["a.py"])
	assert.Equal(t, 0.64, byFile["b.py"])
}
