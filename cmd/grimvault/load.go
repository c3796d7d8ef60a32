package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimvault/internal/loader"
)

var (
	loadValidate    bool
	loadSkipInvalid bool
	loadAuthor      string
)

func loadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load <module-file>",
		Short: "Load a module bundle into the library",
		Args:  cobra.ExactArgs(1),
		RunE:  runLoad,
	}
	cmd.Flags().BoolVar(&loadValidate, "validate", false, "Validate entities before insert")
	cmd.Flags().BoolVar(&loadSkipInvalid, "skip-invalid", false, "Skip failing entities instead of aborting")
	cmd.Flags().StringVar(&loadAuthor, "author", "", "Author identity recorded on the module")
	return cmd
}

func runLoad(cmd *cobra.Command, args []string) error {
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

	ldr := loader.New(db, newLogger())
	result, err := ldr.LoadModule(ctx, args[0], loader.Options{
		Validate:    loadValidate,
		SkipInvalid: loadSkipInvalid,
		AuthorID:    loadAuthor,
	})
	if err != nil {
		return err
	}

	printLoadResult(result)
	return nil
}

func printLoadResult(result *loader.Result) {
	fmt.Fprintf(os.Stdout, "Module %s loaded.\n", result.Module.ModuleKey)
	fmt.Fprintf(os.Stdout, "  Entities loaded:  %d\n", result.Loaded)
	fmt.Fprintf(os.Stdout, "  Entities skipped: %d\n", result.Skipped)

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nSkipped (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", item)
		}
	}
}
