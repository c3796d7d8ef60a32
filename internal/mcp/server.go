// Package mcp exposes the module library to MCP clients: searching and
// reconstructing content, reading validation state, and scheduling
// background revalidation.
package mcp

import (
	"context"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"grimvault/internal/loader"
	"grimvault/internal/scheduler"
	"grimvault/internal/search"
	"grimvault/internal/store"
	"grimvault/internal/validate"
)

type Server struct {
	db        store.Store
	loader    *loader.Loader
	engine    *search.Engine
	validator *validate.Validator
	scheduler *scheduler.Scheduler
	mcp       *sdk.Server
}

func NewServer(db store.Store, ldr *loader.Loader, engine *search.Engine, validator *validate.Validator, sched *scheduler.Scheduler, version string) *Server {
	s := &Server{
		db:        db,
		loader:    ldr,
		engine:    engine,
		validator: validator,
		scheduler: sched,
		mcp: sdk.NewServer(&sdk.Implementation{
			Name:    "grimvault",
			Version: version,
		}, nil),
	}
	s.registerTools()
	return s
}

func (s *Server) Run(ctx context.Context, transport sdk.Transport) error {
	return s.mcp.Run(ctx, transport)
}
