package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/baseuri"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
)

var lsTags []string

var lsCmd = &cobra.Command{
	Use:   "ls BASE_URI",
	Short: "list the datasets of a base URI",
	Long: `List the datasets below a local base URI, optionally restricted to datasets
carrying all given tags. The base URI lookup:// lists the lookup server catalog.`,
	Example: `  $ dtool-lookup-gui ls file:///data/datasets --tag raw --tag simulation
  $ dtool-lookup-gui ls lookup:// --page 2`,
	Args: cobra.ExactArgs(1),
	RunE: runLs,
}

func init() {
	lsCmd.Flags().StringSliceVar(&lsTags, "tag", nil, "only list datasets with this tag, repeatable")
	addPaginationFlags(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	b, err := baseuri.Parse(args[0])
	if err != nil {
		return err
	}
	switch b.Scheme {
	case baseuri.SchemeLookup:
		return runCatalogSearch(cmd, "")
	case baseuri.SchemeFile:
	default:
		return fmt.Errorf("%w: listing %s endpoints", common.ErrUnsupportedScheme, b.Scheme)
	}

	ctx, cancel := commandContext()
	defer cancel()

	datasets, err := dataset.ListLocal(ctx, b.URI())
	if err != nil {
		return err
	}
	if len(lsTags) > 0 {
		index := dataset.IndexTags(datasets, dataset.TagsOf(ctx))
		positions := index.Filter(lsTags...)
		filtered := make([]dataset.Dataset, 0, len(positions))
		for _, pos := range positions {
			filtered = append(filtered, datasets[pos])
		}
		datasets = filtered
	}

	out := cmd.OutOrStdout()
	if len(datasets) == 0 {
		printInfo(out, "No datasets in %s", b)
		return nil
	}
	printDatasets(out, datasets)
	return nil
}
