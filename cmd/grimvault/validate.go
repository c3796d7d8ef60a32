package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"grimvault/internal/scheduler"
	"grimvault/internal/store"
	"grimvault/internal/validate"
)

var (
	validateForce bool
	validateAll   bool
)

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [module]",
		Short: "Validate a module against its property definitions",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runValidate,
	}
	cmd.Flags().BoolVar(&validateForce, "force", false, "Validate even if recently validated")
	cmd.Flags().BoolVar(&validateAll, "all", false, "Validate every loaded module through the scheduler")
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	validator := validate.New(db)

	if validateAll {
		if len(args) != 0 {
			return fmt.Errorf("--all takes no module argument")
		}
		return runValidateAll(ctx, db, validator, cfg.Scheduler.Workers)
	}
	if len(args) != 1 {
		return fmt.Errorf("a module argument is required without --all")
	}

	module, err := resolveModule(ctx, db, args[0])
	if err != nil {
		return err
	}

	// Freshness window is this caller's policy, not the validator's.
	window := time.Duration(cfg.Validation.FreshnessMinutes) * time.Minute
	if !validateForce && module.LastValidatedAt != nil && time.Since(*module.LastValidatedAt) < window {
		fmt.Fprintf(os.Stdout, "Module %s validated %s ago, skipping (use --force to override).\n",
			module.ModuleKey, time.Since(*module.LastValidatedAt).Round(time.Second))
		return nil
	}

	report, err := validator.ValidateModule(ctx, module.ID)
	if err != nil {
		return err
	}
	return printReport(module.ModuleKey, report)
}

func runValidateAll(ctx context.Context, db store.Store, validator *validate.Validator, workers int) error {
	modules, err := db.ListModules(ctx)
	if err != nil {
		return err
	}
	if len(modules) == 0 {
		fmt.Fprintln(os.Stdout, "No modules loaded.")
		return nil
	}

	moduleIDs := make([]uuid.UUID, 0, len(modules))
	keysByID := make(map[uuid.UUID]string, len(modules))
	for _, module := range modules {
		moduleIDs = append(moduleIDs, module.ID)
		keysByID[module.ID] = module.ModuleKey
	}

	sched := scheduler.New(validator, workers, newLogger())
	jobIDs := sched.BatchSchedule(moduleIDs)
	sched.Stop()

	failed := false
	for _, jobID := range jobIDs {
		job, ok := sched.Job(jobID)
		if !ok {
			continue
		}
		key := keysByID[job.ModuleID]
		switch job.State {
		case scheduler.StateCompleted:
			verdict := "valid"
			if !job.Report.Valid {
				verdict = fmt.Sprintf("invalid (%d findings)", len(job.Report.Findings))
				failed = true
			}
			fmt.Fprintf(os.Stdout, "  %-30s %s\n", key, verdict)
		case scheduler.StateFailed:
			fmt.Fprintf(os.Stdout, "  %-30s failed: %s\n", key, job.Error)
			failed = true
		default:
			fmt.Fprintf(os.Stdout, "  %-30s %s\n", key, job.State)
		}
	}

	if failed {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printReport(moduleKey string, report *validate.ModuleReport) error {
	var errorFindings []store.ErrorInput
	var warnFindings []store.ErrorInput
	for _, finding := range report.Findings {
		switch finding.Severity {
		case store.SeverityError:
			errorFindings = append(errorFindings, finding)
		case store.SeverityWarn:
			warnFindings = append(warnFindings, finding)
		}
	}

	if len(errorFindings) == 0 && len(warnFindings) == 0 {
		fmt.Fprintf(os.Stdout, "Module %s is valid.\n", moduleKey)
		return nil
	}

	if len(errorFindings) > 0 {
		fmt.Fprintf(os.Stdout, "Errors (%d):\n", len(errorFindings))
		printFindings(errorFindings)
	}
	if len(warnFindings) > 0 {
		if len(errorFindings) > 0 {
			fmt.Fprintln(os.Stdout, "")
		}
		fmt.Fprintf(os.Stdout, "Warnings (%d):\n", len(warnFindings))
		printFindings(warnFindings)
	}

	if len(errorFindings) > 0 {
		return fmt.Errorf("validation found errors")
	}
	return nil
}

func printFindings(findings []store.ErrorInput) {
	for _, finding := range findings {
		location := finding.EntityName
		if location == "" {
			location = "module"
		}
		if finding.PropertyKey != "" {
			location = fmt.Sprintf("%s.%s", location, finding.PropertyKey)
		}
		fmt.Fprintf(os.Stdout, "  - %s: %s (%s)\n", location, finding.Message, finding.Kind)
	}
}
