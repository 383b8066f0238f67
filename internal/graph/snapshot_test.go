package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedCallChain indexes a.py (defines f), b.py (calls f, imports a), and
// c.py (calls g defined in b.py).
func seedCallChain(t *testing.T, store *Store) {
	t.Helper()

	_, err := store.UpsertFile(indexedFile("a.py"),
		[]Symbol{moduleSymbol("a.py"), funcSymbol("a.py", "f")}, nil, nil)
	require.NoError(t, err)

	_, err = store.UpsertFile(indexedFile("b.py"),
		[]Symbol{moduleSymbol("b.py"), funcSymbol("b.py", "g")},
		[]Edge{
			{SourceID: "b.py|func|g", TargetName: "f", Kind: EdgeCalls, File: "b.py"},
			{SourceID: "b.py|module|b.py", TargetName: "a", Kind: EdgeImports, File: "b.py"},
		},
		map[string]string{"a": "a"})
	require.NoError(t, err)

	_, err = store.UpsertFile(indexedFile("c.py"),
		[]Symbol{moduleSymbol("c.py"), funcSymbol("c.py", "h")},
		[]Edge{{SourceID: "c.py|func|h", TargetName: "g", Kind: EdgeCalls, File: "c.py"}},
		nil)
	require.NoError(t, err)
}

func TestSnapshotResolvesCalls(t *testing.T) {
	store, _ := openStore(t)
	seedCallChain(t, store)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), snap.Version)

	callers := snap.EdgesTo("a.py|func|f")
	require.Len(t, callers, 1)
	assert.Equal(t, "b.py|func|g", callers[0].SourceID)
	assert.Equal(t, EdgeCalls, callers[0].Kind)

	callersOfG := snap.EdgesTo("b.py|func|g")
	require.Len(t, callersOfG, 1)
	assert.Equal(t, "c.py|func|h", callersOfG[0].SourceID)
}

func TestSnapshotResolvesImports(t *testing.T) {
	store, _ := openStore(t)
	seedCallChain(t, store)

	snap, err := store.Snapshot()
	require.NoError(t, err)

	out := snap.EdgesFrom("b.py|module|b.py")
	require.Len(t, out, 1)
	assert.Equal(t, "a.py|module|a.py", out[0].TargetID)
	assert.Equal(t, EdgeImports, out[0].Kind)
}

func TestSnapshotResolutionIsOrderIndependent(t *testing.T) {
	// Index the caller before its callee exists; the edge must still resolve.
	store, _ := openStore(t)

	_, err := store.UpsertFile(indexedFile("b.py"),
		[]Symbol{moduleSymbol("b.py"), funcSymbol("b.py", "g")},
		[]Edge{{SourceID: "b.py|func|g", TargetName: "f", Kind: EdgeCalls, File: "b.py"}},
		nil)
	require.NoError(t, err)

	before, err := store.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, before.EdgesTo("a.py|func|f"))

	_, err = store.UpsertFile(indexedFile("a.py"),
		[]Symbol{moduleSymbol("a.py"), funcSymbol("a.py", "f")}, nil, nil)
	require.NoError(t, err)

	after, err := store.Snapshot()
	require.NoError(t, err)
	callers := after.EdgesTo("a.py|func|f")
	require.Len(t, callers, 1)
	assert.Equal(t, "b.py|func|g", callers[0].SourceID)
}

func TestSnapshotIsolation(t *testing.T) {
	store, _ := openStore(t)
	seedCallChain(t, store)

	snap, err := store.Snapshot()
	require.NoError(t, err)

	_, err = store.UpsertFile(indexedFile("d.py"),
		[]Symbol{moduleSymbol("d.py"), funcSymbol("d.py", "k")}, nil, nil)
	require.NoError(t, err)

	// The earlier snapshot never sees the later commit.
	assert.Equal(t, uint64(3), snap.Version)
	assert.False(t, snap.HasFile("d.py"))
	assert.False(t, snap.HasSymbol("d.py|func|k"))
}

func TestSnapshotDropsSelfEdges(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.UpsertFile(indexedFile("a.py"),
		[]Symbol{moduleSymbol("a.py"), funcSymbol("a.py", "f")},
		[]Edge{{SourceID: "a.py|func|f", TargetName: "f", Kind: EdgeCalls, File: "a.py"}},
		nil)
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.EdgesTo("a.py|func|f"))
	assert.Empty(t, snap.EdgesFrom("a.py|func|f"))
}

func TestSnapshotAmbiguousNameStaysUnresolved(t *testing.T) {
	store, _ := openStore(t)
	_, err := store.UpsertFile(indexedFile("pkg1/util.py"),
		[]Symbol{moduleSymbol("pkg1/util.py"), funcSymbol("pkg1/util.py", "helper")}, nil, nil)
	require.NoError(t, err)
	_, err = store.UpsertFile(indexedFile("pkg2/util.py"),
		[]Symbol{moduleSymbol("pkg2/util.py"), funcSymbol("pkg2/util.py", "helper")}, nil, nil)
	require.NoError(t, err)
	_, err = store.UpsertFile(indexedFile("main.py"),
		[]Symbol{moduleSymbol("main.py"), funcSymbol("main.py", "run")},
		[]Edge{{SourceID: "main.py|func|run", TargetName: "helper", Kind: EdgeCalls, File: "main.py"}},
		nil)
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)

	out := snap.EdgesFrom("main.py|func|run")
	require.Len(t, out, 1)
	assert.Empty(t, out[0].TargetID)
	assert.Equal(t, "helper", out[0].TargetName)
}

func TestSnapshotSymbolsForFileSorted(t *testing.T) {
	store, _ := openStore(t)
	seedCallChain(t, store)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.py|func|f", "a.py|module|a.py"}, snap.SymbolsForFile("a.py"))
}
