package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/memory"
)

func RunRemember(cmd *cobra.Command, args []string) error {
	scopeName, err := cmd.Flags().GetString("scope")
	if err != nil {
		return fmt.Errorf("failed to read --scope flag: %w", err)
	}
	ref, err := cmd.Flags().GetString("ref")
	if err != nil {
		return fmt.Errorf("failed to read --ref flag: %w", err)
	}

	var scope memory.Scope
	switch scopeName {
	case "global":
		scope = memory.ScopeGlobal
	case "agent":
		scope = memory.ScopeAgent
	case "session", "":
		scope = memory.ScopeSession
	default:
		return fmt.Errorf("unknown memory scope %q (want global, agent, or session)", scopeName)
	}

	root, err := resolveRoot(nil)
	if err != nil {
		return err
	}

	store := memory.Open(filepath.Join(root, graph.IndexDir, "memory"), scope)
	if err := store.Append(memory.Record{
		Ref:     ref,
		Content: strings.Join(args, " "),
	}); err != nil {
		return err
	}
	fmt.Printf("remembered in %s memory\n", scope)
	return nil
}
