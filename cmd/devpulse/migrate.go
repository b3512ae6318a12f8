package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/devpulse/internal/storage"
)

var migratePrint bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the segment schema to the configured store",
	Long: `Apply the segment schema to the configured store.

The sqlite store also creates its local copy of the indexer tables. With
--print the schema is written to stdout instead of being applied.`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migratePrint, "print", false, "print the schema instead of applying it")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	driver := cfg.Storage.Type
	if driver == "" {
		driver = "sqlite"
	}

	if migratePrint {
		schema, err := storage.Schema(driver)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(os.Stdout, schema)
		return err
	}

	store, err := storage.Open(cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	if pg, ok := store.(*storage.PostgresStore); ok {
		if err := pg.Migrate(cmd.Context()); err != nil {
			return err
		}
	}
	logger.WithField("type", driver).Info("Schema is up to date")
	return nil
}
