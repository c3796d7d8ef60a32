package main

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"grimvault/internal/store"
	"grimvault/internal/validate"
)

func campaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Manage campaign module attachments",
	}
	cmd.AddCommand(campaignAttachCmd())
	cmd.AddCommand(campaignDetachCmd())
	cmd.AddCommand(campaignListCmd())
	return cmd
}

var attachLoadOrder int

func campaignAttachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "attach <campaign-id> <module>",
		Short: "Attach a module to a campaign",
		Args:  cobra.ExactArgs(2),
		RunE:  runCampaignAttach,
	}
	cmd.Flags().IntVar(&attachLoadOrder, "load-order", 0, "Load order (lower loads first)")
	return cmd
}

func runCampaignAttach(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	campaignID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid campaign id: %w", err)
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

	module, err := resolveModule(ctx, db, args[1])
	if err != nil {
		return err
	}

	validator := validate.New(db)
	compatible, err := validator.CheckCampaignCompatibility(ctx, module.ID, campaignID)
	if err != nil {
		return err
	}
	if !compatible {
		return fmt.Errorf("module %s uses a different game system than the campaign", module.ModuleKey)
	}

	link, err := db.AttachCampaignModule(ctx, campaignID, module.ID, attachLoadOrder)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Module %s attached at load order %d.\n", module.ModuleKey, link.LoadOrder)
	return nil
}

func campaignDetachCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <campaign-id> <module>",
		Short: "Detach a module from a campaign",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			campaignID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id: %w", err)
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

			module, err := resolveModule(ctx, db, args[1])
			if err != nil {
				return err
			}
			if err := db.DetachCampaignModule(ctx, campaignID, module.ID); err != nil {
				return err
			}

			fmt.Fprintf(os.Stdout, "Module %s detached.\n", module.ModuleKey)
			return nil
		},
	}
}

func campaignListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <campaign-id>",
		Short: "List a campaign's attached modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			campaignID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid campaign id: %w", err)
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

			links, err := db.ListCampaignModules(ctx, campaignID)
			if err != nil {
				return err
			}
			if len(links) == 0 {
				fmt.Fprintln(os.Stdout, "No modules attached.")
				return nil
			}
			printCampaignModules(ctx, db, links)
			return nil
		},
	}
}

func printCampaignModules(ctx context.Context, db store.Store, links []store.CampaignModule) {
	for _, link := range links {
		name := link.ModuleID.String()
		if module, err := db.GetModule(ctx, link.ModuleID); err == nil {
			name = module.ModuleKey
		}
		active := "active"
		if !link.Active {
			active = "inactive"
		}
		fmt.Fprintf(os.Stdout, "  %2d  %-30s %s\n", link.LoadOrder, name, active)
	}
}
