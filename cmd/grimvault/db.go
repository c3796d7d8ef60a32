package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"grimvault/internal/config"
	"grimvault/internal/store"
	"grimvault/internal/store/postgres"
)

const (
	configPath      = "grimvault.yaml"
	definitionsPath = "definitions.yaml"
)

func loadConfig() (*config.ProjectConfig, error) {
	return config.LoadProjectConfig(configPath)
}

func openDB(ctx context.Context, cfg *config.ProjectConfig) (*postgres.Client, error) {
	return postgres.New(ctx, cfg.Database.DSN)
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// resolveModule accepts either a module UUID or a module key.
func resolveModule(ctx context.Context, db store.Store, ref string) (*store.Module, error) {
	if moduleID, err := uuid.Parse(ref); err == nil {
		module, err := db.GetModule(ctx, moduleID)
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", ref, err)
		}
		return module, nil
	}
	module, err := db.GetModuleByKey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("module %s: %w", ref, err)
	}
	return module, nil
}
