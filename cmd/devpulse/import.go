package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/errors"
	"github.com/rohankatakam/devpulse/internal/storage"
)

var importCmd = &cobra.Command{
	Use:   "import [dump.json]",
	Short: "Load an indexer dump into the local sqlite store",
	Long: `Load a JSON export of the indexer tables into the local sqlite store,
so analytics can run without a Postgres indexer. Reads stdin when the
path is "-".`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	if cfg.Storage.Type != "sqlite" {
		return errors.ConfigErrorf("import requires storage.type sqlite, got %q", cfg.Storage.Type)
	}

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("open dump: %w", err)
		}
		defer f.Close()
		r = f
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.LocalPath, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	counts, err := store.Import(cmd.Context(), r)
	if err != nil {
		return err
	}
	return printJSON(counts)
}
