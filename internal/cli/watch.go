package cli

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

const defaultDebounce = 500 * time.Millisecond

// skipDirs are directories never worth watching. The scanner applies the
// same set plus gitignore rules when the pass actually runs.
var skipDirs = map[string]bool{
	".git":         true,
	".packrat":     true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
}

// RunWatch keeps an incremental index pass running behind a debounced
// filesystem watcher. Single-writer discipline holds: passes run
// sequentially off one timer, never concurrently.
func RunWatch(cmd *cobra.Command, args []string) error {
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("failed to read --debounce flag: %w", err)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	e, err := openEnv(args)
	if err != nil {
		return err
	}
	defer e.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watchTree(watcher, e.root); err != nil {
		return err
	}

	runPass := func() {
		result, err := e.indexer.Run(cmd.Context())
		if err != nil {
			fmt.Fprintf(os.Stderr, "watch: index pass failed: %v\n", err)
			return
		}
		if result.Indexed > 0 || result.Removed > 0 {
			fmt.Printf("watch: indexed=%d removed=%d version=%d\n", result.Indexed, result.Removed, result.Version)
		}
	}

	runPass()
	fmt.Printf("watching %s (debounce %s)\n", e.root, debounce)

	timer := time.NewTimer(debounce)
	if !timer.Stop() {
		<-timer.C
	}

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := watchTree(watcher, event.Name); err != nil {
						slog.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			timer.Reset(debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		case <-timer.C:
			runPass()
		}
	}
}

func watchTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}
