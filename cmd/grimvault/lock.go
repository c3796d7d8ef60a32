package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var lockRelease bool

func lockCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lock <module>",
		Short: "Lock a module against deletion",
		Args:  cobra.ExactArgs(1),
		RunE:  runLock,
	}
	cmd.Flags().BoolVar(&lockRelease, "unlock", false, "Release the lock instead")
	return cmd
}

func runLock(cmd *cobra.Command, args []string) error {
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
	if err := db.SetModuleLocked(ctx, module.ID, !lockRelease); err != nil {
		return err
	}

	if lockRelease {
		fmt.Fprintf(os.Stdout, "Module %s unlocked.\n", module.ModuleKey)
	} else {
		fmt.Fprintf(os.Stdout, "Module %s locked.\n", module.ModuleKey)
	}
	return nil
}
