package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/impact"
	"github.com/packrat-dev/packrat/internal/memory"
	"github.com/packrat-dev/packrat/internal/pack"
	"github.com/packrat-dev/packrat/internal/tokenizer"
)

func RunPack(cmd *cobra.Command, args []string) error {
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}
	withManifest, err := boolFlag(cmd, "manifest")
	if err != nil {
		return err
	}
	budget, err := cmd.Flags().GetInt("budget")
	if err != nil {
		return fmt.Errorf("failed to read --budget flag: %w", err)
	}
	maxDepth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return fmt.Errorf("failed to read --max-depth flag: %w", err)
	}
	query, err := cmd.Flags().GetString("query")
	if err != nil {
		return fmt.Errorf("failed to read --query flag: %w", err)
	}

	e, err := openEnv(nil)
	if err != nil {
		return err
	}
	defer e.Close()

	if budget <= 0 {
		budget = e.cfg.DefaultBudgetTokens
	}
	if query == "" {
		query = strings.Join(args, " ")
	}

	counter, err := tokenizer.ForName(e.cfg.Tokenizer)
	if err != nil {
		return err
	}

	snap, err := e.store.Snapshot()
	if err != nil {
		return err
	}

	opts := impact.Options{
		MaxDepth:       e.cfg.MaxDepth,
		BaseConfidence: e.cfg.BaseConfidence,
	}
	if maxDepth > 0 {
		opts.MaxDepth = maxDepth
	}

	nodes, err := impact.Impact(snap, args, opts)
	if err != nil {
		return err
	}

	candidates := pack.GraphCandidates(e.root, snap, nodes)
	memoryDir := filepath.Join(e.root, graph.IndexDir, "memory")
	stores := make(map[pack.Source]*memory.Store)
	for _, scope := range []memory.Scope{memory.ScopeGlobal, memory.ScopeAgent, memory.ScopeSession} {
		store := memory.Open(memoryDir, scope)
		stores[store.Source()] = store
		retrieved, err := store.Retrieve(query, 20)
		if err != nil {
			return err
		}
		candidates = append(candidates, retrieved...)
	}

	result, err := pack.Build(pack.Request{
		Candidates:  candidates,
		Impact:      nodes,
		Budget:      budget,
		MinPackSize: e.cfg.MinPackSize,
		Weights:     e.cfg.Weights,
		Counter:     counter,
		Version:     snap.Version,
	})
	if err != nil {
		return err
	}

	// Selected memory entries count as used; their frequency score grows on
	// later retrievals.
	selected := make(map[pack.Source][]string)
	for _, entry := range result.Entries {
		if _, ok := stores[entry.Source]; ok {
			selected[entry.Source] = append(selected[entry.Source], entry.Fingerprint)
		}
	}
	for source, fingerprints := range selected {
		if err := stores[source].TouchByFingerprint(fingerprints...); err != nil {
			return err
		}
	}

	if asJSON {
		return printJSON(result)
	}

	fmt.Printf(
		"pack: entries=%d tokens=%d/%d considered=%d excluded=%d version=%d\n",
		len(result.Entries),
		result.TotalTokens,
		result.Budget,
		result.Considered,
		len(result.Excluded),
		result.Version,
	)
	for _, entry := range result.Entries {
		fmt.Printf("  [%s] %s (%d tokens, score %.3f)\n", entry.Source, entry.Ref, entry.Tokens, entry.Scores.Total)
	}
	if withManifest {
		for _, excl := range result.Excluded {
			fmt.Printf("  - [%s] %s (%d tokens, score %.3f): %s\n", excl.Source, excl.Ref, excl.Tokens, excl.Score, excl.Reason)
		}
	}
	return nil
}
