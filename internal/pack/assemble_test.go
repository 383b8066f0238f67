package pack

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packrat-dev/packrat/internal/extract"
	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/impact"
	"github.com/packrat-dev/packrat/internal/indexer"
)

func TestGraphCandidatesExcerptImpactedSymbols(t *testing.T) {
	root := t.TempDir()
	write := func(name, content string) {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(content), 0o644))
	}
	write("a.py", "def f():\n    return 1\n")
	write("b.py", "def g():\n    return f()\n")

	store, err := graph.Open(root)
	require.NoError(t, err)
	defer store.Close()

	ix := indexer.New(root, store, extract.NewExtractor(), nil)
	_, err = ix.Run(context.Background())
	require.NoError(t, err)

	snap, err := store.Snapshot()
	require.NoError(t, err)
	nodes, err := impact.Impact(snap, []string{"a.py"}, impact.DefaultOptions())
	require.NoError(t, err)

	candidates := GraphCandidates(root, snap, nodes)
	require.NotEmpty(t, candidates)

	byRef := make(map[string]Candidate, len(candidates))
	for _, cand := range candidates {
		assert.Equal(t, SourceGraph, cand.Source)
		byRef[cand.Ref] = cand
	}

	f, ok := byRef["a.py|func|f"]
	require.True(t, ok, "changed function must produce an excerpt")
	assert.Contains(t, f.Content, "def f():")
	assert.Contains(t, f.Content, "a.py:1")
	assert.False(t, f.CreatedAt.IsZero(), "excerpts inherit the file mtime for recency")

	g, ok := byRef["b.py|func|g"]
	require.True(t, ok, "impacted caller must produce an excerpt")
	assert.Contains(t, g.Content, "def g():")

	// Files with declarations never emit the whole-file module blob.
	_, ok = byRef["a.py|module|a.py"]
	assert.False(t, ok)
}
