package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/packrat-dev/packrat/internal/indexer"
)

func RunIndex(cmd *cobra.Command, args []string) error {
	return runIndexPass(cmd, args, "index", func(ctx context.Context, e *env) (*indexer.Result, error) {
		if e.recovered {
			return e.indexer.Rebuild(ctx)
		}
		return e.indexer.Run(ctx)
	})
}

func RunRebuild(cmd *cobra.Command, args []string) error {
	return runIndexPass(cmd, args, "rebuild", func(ctx context.Context, e *env) (*indexer.Result, error) {
		return e.indexer.Rebuild(ctx)
	})
}

func runIndexPass(cmd *cobra.Command, args []string, mode string, run func(context.Context, *env) (*indexer.Result, error)) error {
	start := time.Now()
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}

	e, err := openEnv(args)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := run(cmd.Context(), e)
	if err != nil {
		return err
	}

	summary := IndexSummary{
		Mode:        mode,
		RootPath:    e.root,
		Scanned:     result.Scanned,
		Indexed:     result.Indexed,
		Removed:     result.Removed,
		ParseErrors: len(result.ParseErrors),
		Warnings:    len(result.Warnings),
		Version:     result.Version,
		Recovered:   e.recovered,
		DurationMS:  time.Since(start).Milliseconds(),
	}
	for _, issue := range result.ParseErrors {
		summary.ErrorFiles = append(summary.ErrorFiles, issue.File)
	}
	return PrintIndexSummary(summary, asJSON)
}
