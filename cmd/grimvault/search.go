package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"grimvault/internal/search"
	"grimvault/internal/store"
)

var (
	searchQuery    string
	searchTypes    []string
	searchTags     []string
	searchStatus   string
	searchGroupBy  string
	searchPage     int
	searchPageSize int
	searchSortBy   string
	searchDesc     bool
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <module>",
		Short: "Search a module's entities",
		Args:  cobra.ExactArgs(1),
		RunE:  runSearch,
	}
	cmd.Flags().StringVar(&searchQuery, "query", "", "Full-text search terms")
	cmd.Flags().StringSliceVar(&searchTypes, "type", nil, "Entity type filter (repeatable)")
	cmd.Flags().StringSliceVar(&searchTags, "tag", nil, "Require all of these tags (repeatable)")
	cmd.Flags().StringVar(&searchStatus, "status", "", "Validation status filter")
	cmd.Flags().StringVar(&searchGroupBy, "group-by", "", "Group results: level, challenge_rating, or subtype")
	cmd.Flags().IntVar(&searchPage, "page", 1, "Result page")
	cmd.Flags().IntVar(&searchPageSize, "page-size", 25, "Entities per page")
	cmd.Flags().StringVar(&searchSortBy, "sort", "", "Sort column: name, entity_type, or entity_key")
	cmd.Flags().BoolVar(&searchDesc, "desc", false, "Sort descending")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
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

	groupBy, err := search.ParseGroupBy(searchGroupBy)
	if err != nil {
		return err
	}

	params := search.Params{
		Query:       searchQuery,
		EntityTypes: searchTypes,
		Tags:        searchTags,
		Page:        searchPage,
		PageSize:    searchPageSize,
		SortBy:      searchSortBy,
		GroupBy:     groupBy,
	}
	if searchDesc {
		params.SortOrder = store.SortDesc
	}
	if searchStatus != "" {
		status, err := store.ParseValidationStatus(searchStatus)
		if err != nil {
			return err
		}
		params.ValidationStatus = &status
	}

	engine := search.New(db)
	page, err := engine.Search(ctx, module.ID, params)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%d entities (page %d, %d shown)\n", page.Total, searchPage, len(page.Entities))
	for _, entity := range page.Entities {
		line := fmt.Sprintf("  %-12s %-30s %s", entity.EntityType, entity.EntityKey, entity.Name)
		if key, ok := page.EntityGroupKeys[entity.ID]; ok {
			line = fmt.Sprintf("%s [%s]", line, key)
		}
		fmt.Fprintln(os.Stdout, line)
	}

	if len(page.Groups) > 0 {
		fmt.Fprintln(os.Stdout, "\nGroups:")
		for _, group := range page.Groups {
			fmt.Fprintf(os.Stdout, "  %-20s %d\n", group.Label, group.Count)
		}
	}
	return nil
}
