package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimvault/internal/loader"
)

func unloadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unload <module>",
		Short: "Delete a module and all of its entities",
		Args:  cobra.ExactArgs(1),
		RunE:  runUnload,
	}
}

func runUnload(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	module, err := resolveModule(ctx, db, args[0])
	if err != nil {
		return err
	}

	// The library leaves these policy checks to its callers.
	if module.Locked {
		return fmt.Errorf("module %s is locked; unlock it first", module.ModuleKey)
	}
	inUse, err := db.ModuleInUse(ctx, module.ID)
	if err != nil {
		return err
	}
	if inUse {
		return fmt.Errorf("module %s is attached to a campaign; detach it first", module.ModuleKey)
	}

	ldr := loader.New(db, newLogger())
	if err := ldr.UnloadModule(ctx, module.ID); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Module %s unloaded.\n", module.ModuleKey)
	return nil
}
