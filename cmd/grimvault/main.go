package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "grimvault",
		Short: "Content module library for virtual tabletops",
	}
	root.Version = version
	root.SetVersionTemplate("{{.Version}}\n")
	root.AddCommand(initCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(loadCmd())
	root.AddCommand(reloadCmd())
	root.AddCommand(unloadCmd())
	root.AddCommand(lockCmd())
	root.AddCommand(statusCmd())
	root.AddCommand(validateCmd())
	root.AddCommand(resolveCmd())
	root.AddCommand(searchCmd())
	root.AddCommand(campaignCmd())
	root.AddCommand(serveCmd())
	root.AddCommand(versionCmd())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
