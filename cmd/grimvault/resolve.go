package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"grimvault/internal/validate"
)

var (
	resolveBy   string
	resolveNote string
)

func resolveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resolve <error-id>",
		Short: "Mark a validation error as resolved",
		Args:  cobra.ExactArgs(1),
		RunE:  runResolve,
	}
	cmd.Flags().StringVar(&resolveBy, "by", "", "Identity of the resolver")
	cmd.Flags().StringVar(&resolveNote, "note", "", "Optional resolution note")
	return cmd
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	errorID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid error id: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	validator := validate.New(db)
	if err := validator.ResolveError(ctx, errorID, resolveBy, resolveNote); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Error %s resolved.\n", errorID)
	return nil
}
