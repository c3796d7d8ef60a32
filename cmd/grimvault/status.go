package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimvault/internal/loader"
	"grimvault/internal/store"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [module]",
		Short: "Show module validation status, or list all modules",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runStatus,
	}
}

func runStatus(cmd *cobra.Command, args []string) error {
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

	if len(args) == 0 {
		return listModules(ctx, db)
	}

	module, err := resolveModule(ctx, db, args[0])
	if err != nil {
		return err
	}

	ldr := loader.New(db, newLogger())
	status, err := ldr.GetModuleStatus(ctx, module.ID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%s (%s)\n", status.Module.Name, status.Module.ModuleKey)
	fmt.Fprintf(os.Stdout, "  Game system: %s\n", status.Module.GameSystem)
	fmt.Fprintf(os.Stdout, "  Status:      %s\n", status.Module.ValidationStatus)
	if status.Module.LastValidatedAt != nil {
		fmt.Fprintf(os.Stdout, "  Validated:   %s\n", status.Module.LastValidatedAt.Format("2006-01-02 15:04:05"))
	}
	if status.Module.Locked {
		fmt.Fprintln(os.Stdout, "  Locked:      yes")
	}

	if len(status.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nOpen errors (%d):\n", len(status.Errors))
		printValidationErrors(status.Errors)
	}
	return nil
}

func listModules(ctx context.Context, db store.Store) error {
	modules, err := db.ListModules(ctx)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		fmt.Fprintln(os.Stdout, "No modules loaded.")
		return nil
	}
	for _, module := range modules {
		marker := " "
		if module.Locked {
			marker = "L"
		}
		fmt.Fprintf(os.Stdout, "%s %-30s %-12s %s\n", marker, module.ModuleKey, module.ValidationStatus, module.Name)
	}
	return nil
}

func printValidationErrors(errs []store.ValidationError) {
	for _, issue := range errs {
		location := issue.EntityName
		if location == "" {
			location = "module"
		}
		if issue.PropertyKey != "" {
			location = fmt.Sprintf("%s.%s", location, issue.PropertyKey)
		}
		fmt.Fprintf(os.Stdout, "  - [%s] %s: %s (%s)\n", issue.Severity, location, issue.Message, issue.Kind)
	}
}
