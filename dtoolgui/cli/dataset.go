package cli

import (
	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/baseuri"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
)

var (
	getItemDir string
	tagRemove  bool
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "create and edit local datasets",
}

var datasetCreateCmd = &cobra.Command{
	Use:   "create BASE_URI NAME",
	Short: "create a proto dataset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := baseuri.Parse(args[0])
		if err != nil {
			return err
		}
		ds, err := a.registry.CreateDataset(ctx, b, args[1])
		if err != nil {
			return err
		}
		info := ds.Info()
		printSuccess(cmd.OutOrStdout(), "Created %s (%s)", info.URI, info.UUID)
		return nil
	},
}

var datasetPutItemsCmd = &cobra.Command{
	Use:   "put-items URI DIR",
	Short: "add the files of a directory to a proto dataset",
	Long: `Add every file below DIR to the proto dataset, keeping relative paths.
Patterns in DIR/.dtoolignore exclude files the way .gitignore does.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		ds, err := dataset.FromURI(ctx, args[0])
		if err != nil {
			return err
		}
		ids, err := dataset.PutItemsFromDirectory(ctx, ds, args[1])
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Added %d items to %s", len(ids), ds.Info().Name)
		return nil
	},
}

var datasetGetItemCmd = &cobra.Command{
	Use:   "get-item URI ITEM_ID",
	Short: "download an item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ds, err := resolveDataset(ctx, a, args[0])
		if err != nil {
			return err
		}
		dir := getItemDir
		if dir == "" {
			dir = a.prefs.ItemDownloadDirectory
		}
		path, err := dataset.DownloadItem(ctx, ds, args[1], dir)
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Saved %s", path)
		return nil
	},
}

var datasetFreezeCmd = &cobra.Command{
	Use:   "freeze URI",
	Short: "freeze a proto dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		ds, err := dataset.FromURI(ctx, args[0])
		if err != nil {
			return err
		}
		if err := ds.Freeze(ctx); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Froze %s", ds.Info().Name)
		return nil
	},
}

var datasetTagCmd = &cobra.Command{
	Use:   "tag URI TAG",
	Short: "add or remove a tag",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		ds, err := dataset.FromURI(ctx, args[0])
		if err != nil {
			return err
		}
		if tagRemove {
			err = ds.DeleteTag(ctx, args[1])
		} else {
			err = ds.PutTag(ctx, args[1])
		}
		return err
	},
}

func init() {
	datasetGetItemCmd.Flags().StringVarP(&getItemDir, "dir", "d", "", "download directory, defaults to the settings")
	datasetTagCmd.Flags().BoolVar(&tagRemove, "remove", false, "remove the tag")

	datasetCmd.AddCommand(datasetCreateCmd, datasetPutItemsCmd, datasetGetItemCmd, datasetFreezeCmd, datasetTagCmd)
}
