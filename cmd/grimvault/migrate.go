package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimvault/internal/config"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema and sync property definitions",
		Args:  cobra.NoArgs,
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defs, err := config.LoadDefinitions(definitionsPath)
	if err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return err
	}

	rows, err := defs.StoreDefinitions(cfg.GameSystem)
	if err != nil {
		return err
	}
	if err := db.SyncDefinitions(ctx, cfg.GameSystem, rows); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Schema ready, %d property definitions synced for %s.\n", len(rows), cfg.GameSystem)
	return nil
}
