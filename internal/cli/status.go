package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func RunStatus(cmd *cobra.Command, args []string) error {
	asJSON, err := boolFlag(cmd, "json")
	if err != nil {
		return err
	}

	e, err := openEnv(args)
	if err != nil {
		return err
	}
	defer e.Close()

	counts, err := e.indexer.Status()
	if err != nil {
		return err
	}

	if asJSON {
		return printJSON(counts)
	}
	fmt.Printf(
		"status: files=%d symbols=%d edges=%d parse_errors=%d version=%d\n",
		counts.Files,
		counts.Symbols,
		counts.Edges,
		counts.ParseErrors,
		counts.Version,
	)
	if counts.Files == 0 {
		fmt.Println("index is empty; run `packrat index` first")
	}
	return nil
}
