package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/copier"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
)

var copyWorkers int

var copyCmd = &cobra.Command{
	Use:   "copy SOURCE_URI DEST_BASE_URI",
	Short: "copy a frozen dataset to another base URI",
	Long: `Copy a frozen local dataset below another local base URI. An interrupted copy
of the same dataset is resumed; any other existing dataset of that name is
an error.`,
	Example: `  $ dtool-lookup-gui copy file:///data/datasets/sim-01 file:///archive`,
	Args:    cobra.ExactArgs(2),
	RunE:    runCopy,
}

func init() {
	copyCmd.Flags().IntVar(&copyWorkers, "workers", copier.DefaultWorkers, "items copied at once")
}

func runCopy(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	src, err := dataset.FromURI(ctx, args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	m := copier.NewManager(copier.Options{
		Workers: copyWorkers,
		OnProgress: func(p copier.Progress) {
			if len(p.Trackers) == 0 {
				return
			}
			t := p.Trackers[0]
			fmt.Fprintf(out, "\r%s: %d/%d items (%.0f%%)", t.Label, t.Step, t.Length, 100*p.Fraction)
		},
		OnHidden: func() { fmt.Fprintln(out) },
	})
	defer m.Close()

	res, err := m.Copy(ctx, src, args[1])
	m.Close()
	if err != nil {
		return err
	}

	mode := "Copied"
	if res.Resume {
		mode = "Resumed"
	}
	printSuccess(out, "%s %s to %s (%d items, %d already present, %s transferred)",
		mode, src.Info().Name, res.URI, res.Items, res.Resumed, humanize.IBytes(uint64(res.Bytes)))
	return nil
}
