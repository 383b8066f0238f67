package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/packrat-dev/packrat/internal/impact"
)

func RunImpact(cmd *cobra.Command, args []string) error {
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}
	maxDepth, err := cmd.Flags().GetInt("max-depth")
	if err != nil {
		return fmt.Errorf("failed to read --max-depth flag: %w", err)
	}

	// Refs are files or symbol IDs, never paths to resolve, so the root is
	// always the working directory here.
	e, err := openEnv(nil)
	if err != nil {
		return err
	}
	defer e.Close()

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

	if asJSON {
		return printJSON(struct {
			Version uint64        `json:"version"`
			Nodes   []impact.Node `json:"nodes"`
		}{Version: snap.Version, Nodes: nodes})
	}

	fmt.Printf("impact: seeds=%d affected=%d version=%d\n", len(args), len(nodes), snap.Version)
	for _, node := range nodes {
		fmt.Printf("  d=%d conf=%.3f %s\n", node.Distance, node.Confidence, node.SymbolID)
	}
	return nil
}
