package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// IndexSummary is the machine-readable result of an index or rebuild run.
type IndexSummary struct {
	Mode        string   `json:"mode"`
	RootPath    string   `json:"root_path"`
	Scanned     int      `json:"scanned"`
	Indexed     int      `json:"indexed"`
	Removed     int      `json:"removed"`
	ParseErrors int      `json:"parse_errors"`
	Warnings    int      `json:"warnings"`
	Version     uint64   `json:"version"`
	Recovered   bool     `json:"recovered,omitempty"`
	DurationMS  int64    `json:"duration_ms"`
	ErrorFiles  []string `json:"error_files,omitempty"`
}

func PrintIndexSummary(summary IndexSummary, asJSON bool) error {
	if asJSON {
		return printJSON(summary)
	}
	fmt.Printf(
		"%s: scanned=%d indexed=%d removed=%d parse_errors=%d warnings=%d version=%d duration=%dms\n",
		summary.Mode,
		summary.Scanned,
		summary.Indexed,
		summary.Removed,
		summary.ParseErrors,
		summary.Warnings,
		summary.Version,
		summary.DurationMS,
	)
	if len(summary.ErrorFiles) > 0 {
		fmt.Printf("parse errors (%d): %s\n", len(summary.ErrorFiles), SummarizePaths(summary.ErrorFiles, 8))
	}
	return nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

func SummarizePaths(paths []string, max int) string {
	if len(paths) <= max {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s ... (+%d more)", strings.Join(paths[:max], ", "), len(paths)-max)
}
