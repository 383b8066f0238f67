package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func NewRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "packrat",
		Short: "Index your codebase and pack budget-exact model context",
		Long: `Packrat keeps an incremental symbol graph of your project, answers
"what does this change affect" impact queries over it, and assembles
token-budgeted context packs from impacted code and external memory.

Durable state lives in .packrat/ and survives crashes; an interrupted
index pass rolls back to the last committed version.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			verbose, _ := cmd.Flags().GetBool("verbose")
			configureLogging(verbose)
		},
	}
	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	indexCmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Incrementally index changed files into the symbol graph",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunIndex,
	}
	indexCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	rebuildCmd := &cobra.Command{
		Use:   "rebuild [path]",
		Short: "Drop the persisted graph and re-index from scratch",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunRebuild,
	}
	rebuildCmd.Flags().Bool("json", false, "Print machine-readable run summary")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health: files, symbols, edges, parse errors, version",
		RunE:  RunStatus,
	}
	statusCmd.Flags().Bool("json", false, "Print machine-readable status output")

	impactCmd := &cobra.Command{
		Use:   "impact <file|symbol> [...]",
		Short: "Show what a change to the given files or symbols affects",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunImpact,
	}
	impactCmd.Flags().Int("max-depth", 0, "Traversal depth bound (default from config)")
	impactCmd.Flags().Bool("json", false, "Print machine-readable impact nodes")

	packCmd := &cobra.Command{
		Use:   "pack <file|symbol> [...]",
		Short: "Assemble a budget-exact context pack for a change set",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunPack,
	}
	packCmd.Flags().Int("budget", 0, "Token budget (default from config)")
	packCmd.Flags().Int("max-depth", 0, "Impact traversal depth bound (default from config)")
	packCmd.Flags().String("query", "", "Memory retrieval query (default: the change set)")
	packCmd.Flags().Bool("json", false, "Print the full pack with manifest")
	packCmd.Flags().Bool("manifest", false, "Include exclusion manifest in text output")

	rememberCmd := &cobra.Command{
		Use:   "remember <content>",
		Short: "Append a note to a memory store",
		Args:  cobra.MinimumNArgs(1),
		RunE:  RunRemember,
	}
	rememberCmd.Flags().String("scope", "session", "Memory scope: global|agent|session")
	rememberCmd.Flags().String("ref", "", "File or symbol the note is about")

	watchCmd := &cobra.Command{
		Use:   "watch [path]",
		Short: "Watch the tree and re-index on changes until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE:  RunWatch,
	}
	watchCmd.Flags().Duration("debounce", 0, "Quiet period before re-indexing after a change")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("packrat %s\n", version)
		},
	}

	rootCmd.AddCommand(
		indexCmd,
		rebuildCmd,
		statusCmd,
		impactCmd,
		packCmd,
		rememberCmd,
		watchCmd,
		versionCmd,
	)

	return rootCmd
}

func configureLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
