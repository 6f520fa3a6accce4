package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/search"
)

var (
	searchPage     int
	searchPageSize int
	searchSort     []string
)

var searchCmd = &cobra.Command{
	Use:   "search [TEXT]",
	Short: "search the lookup server",
	Long: `Search the lookup server. Plain text runs a free text search; text that is a
JSON object runs a raw MongoDB query; no text lists all datasets.`,
	Example: `  $ dtool-lookup-gui search simulation
  $ dtool-lookup-gui search '{"creator_username": "alice"}' --sort created_at:desc
  $ dtool-lookup-gui search --page 3 --page-size 50`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ""
		if len(args) > 0 {
			text = args[0]
		}
		return runCatalogSearch(cmd, text)
	},
}

func addPaginationFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&searchPage, "page", 1, "page to show")
	cmd.Flags().IntVar(&searchPageSize, "page-size", search.DefaultPageSize, "datasets per page (5, 10, 20, 50 or 100)")
	cmd.Flags().StringSliceVar(&searchSort, "sort", nil, "sort keys as FIELD[:asc|:desc], repeatable")
}

func init() {
	addPaginationFlags(searchCmd)
}

// parseSort turns FIELD[:asc|:desc] entries into parallel field and order lists
func parseSort(entries []string) ([]string, []int, error) {
	fields := make([]string, 0, len(entries))
	order := make([]int, 0, len(entries))
	for _, entry := range entries {
		field, dir, _ := strings.Cut(entry, ":")
		o := search.Ascending
		switch strings.ToLower(dir) {
		case "", "asc":
		case "desc":
			o = search.Descending
		default:
			return nil, nil, common.NewValidationError("sort", entry, "direction must be asc or desc")
		}
		fields = append(fields, field)
		order = append(order, o)
	}
	return fields, order, nil
}

func newSearchState() (*search.State, error) {
	state := search.NewState()
	if err := state.SetPageSize(searchPageSize); err != nil {
		return nil, err
	}
	if len(searchSort) > 0 {
		fields, order, err := parseSort(searchSort)
		if err != nil {
			return nil, err
		}
		if err := state.SetSorting(fields, order); err != nil {
			return nil, err
		}
	}
	return state, nil
}

func runCatalogSearch(cmd *cobra.Command, text string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	state, err := newSearchState()
	if err != nil {
		return err
	}
	ctl := search.NewController(a.client, state, a.retrier)
	res, err := fetchPage(ctx, ctl, text, searchPage)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	datasets := make([]dataset.Dataset, len(res.Datasets))
	for i, info := range res.Datasets {
		datasets[i] = dataset.FromLookup(info, a.client, a.bodyCache())
	}
	if len(datasets) == 0 {
		printInfo(out, "No datasets found")
		return nil
	}
	printDatasets(out, datasets)
	fmt.Fprintln(out)
	printPagination(out, res.State)
	return nil
}

// fetchPage submits text and moves to page once the page count is known
func fetchPage(ctx context.Context, ctl *search.Controller, text string, page int) (*search.Result, error) {
	res, err := ctl.Submit(ctx, text)
	if err != nil || page <= 1 {
		return res, err
	}
	return ctl.ShowPage(ctx, page)
}
