package main

import (
	"context"

	"github.com/spf13/cobra"

	"grimvault/internal/loader"
)

var (
	reloadSource      string
	reloadValidate    bool
	reloadSkipInvalid bool
)

func reloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reload <module>",
		Short: "Re-parse a module's source file and replace its entities",
		Args:  cobra.ExactArgs(1),
		RunE:  runReload,
	}
	cmd.Flags().StringVar(&reloadSource, "source", "", "Override the recorded source path")
	cmd.Flags().BoolVar(&reloadValidate, "validate", false, "Validate entities before insert")
	cmd.Flags().BoolVar(&reloadSkipInvalid, "skip-invalid", false, "Skip failing entities instead of aborting")
	return cmd
}

func runReload(cmd *cobra.Command, args []string) error {
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

	ldr := loader.New(db, newLogger())
	result, err := ldr.ReloadModule(ctx, module.ID, reloadSource, loader.Options{
		Validate:    reloadValidate,
		SkipInvalid: reloadSkipInvalid,
	})
	if err != nil {
		return err
	}

	printLoadResult(result)
	return nil
}
