package main

import (
	"context"

	"github.com/spf13/cobra"

	"grimvault/internal/loader"
	"grimvault/internal/mcp"
	"grimvault/internal/scheduler"
	"grimvault/internal/search"
	"grimvault/internal/validate"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
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

	logger := newLogger()
	validator := validate.New(db)
	sched := scheduler.New(validator, cfg.Scheduler.Workers, logger)
	defer sched.Stop()

	server := mcp.NewServer(db, loader.New(db, logger), search.New(db), validator, sched, version)
	return server.Run(ctx, &sdk.StdioTransport{})
}
