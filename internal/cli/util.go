package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/packrat-dev/packrat/internal/config"
	"github.com/packrat-dev/packrat/internal/extract"
	"github.com/packrat-dev/packrat/internal/graph"
	"github.com/packrat-dev/packrat/internal/indexer"
)

// env is the shared per-command wiring: resolved root, loaded config, open
// store, and the indexer over it.
type env struct {
	root      string
	cfg       config.Config
	store     *graph.Store
	indexer   *indexer.Indexer
	recovered bool
}

func (e *env) Close() {
	if e.store != nil {
		e.store.Close()
	}
}

// openEnv resolves the project root, loads config, and opens the store. A
// corrupt index is discarded on the spot; the caller's next Run re-indexes
// from scratch, which is exactly the rebuild slow path.
func openEnv(args []string) (*env, error) {
	root, err := resolveRoot(args)
	if err != nil {
		return nil, err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	recovered := false
	store, err := graph.Open(root)
	if errors.Is(err, graph.ErrCorruptIndex) {
		fmt.Fprintf(os.Stderr, "warning: %v; rebuilding from scratch\n", err)
		if err := removeIndex(root); err != nil {
			return nil, err
		}
		store, err = graph.Open(root)
		recovered = true
	}
	if err != nil {
		return nil, err
	}

	return &env{
		root:      root,
		cfg:       cfg,
		store:     store,
		indexer:   indexer.New(root, store, extract.NewExtractor(), slog.Default()),
		recovered: recovered,
	}, nil
}

func resolveRoot(args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		abs, err := filepath.Abs(args[0])
		if err != nil {
			return "", fmt.Errorf("failed to resolve path %s: %w", args[0], err)
		}
		return abs, nil
	}
	root, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}
	return root, nil
}

func removeIndex(root string) error {
	base := filepath.Join(root, graph.IndexDir, "index.db")
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove corrupt index: %w", err)
		}
	}
	return nil
}

func boolFlag(cmd *cobra.Command, name string) (bool, error) {
	value, err := cmd.Flags().GetBool(name)
	if err != nil {
		return false, fmt.Errorf("failed to read --%s flag: %w", name, err)
	}
	return value, nil
}
