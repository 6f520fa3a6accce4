package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/search"
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func printDatasets(w io.Writer, datasets []dataset.Dataset) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tUUID\tKIND\tSIZE\tCREATED\tCREATOR")
	for _, ds := range datasets {
		info := ds.Info()
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			info.Name, info.UUID, ds.Kind(), common.FormatSize(info.SizeInBytes), formatTime(info.CreatedAt), info.Creator)
	}
	tw.Flush()
}

func printInfoBlock(w io.Writer, ds dataset.Dataset) {
	info := ds.Info()
	frozen := "-"
	if info.FrozenAt != nil {
		frozen = formatTime(*info.FrozenAt)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", info.Name)
	fmt.Fprintf(tw, "UUID:\t%s\n", info.UUID)
	fmt.Fprintf(tw, "URI:\t%s\n", info.URI)
	fmt.Fprintf(tw, "Kind:\t%s\n", ds.Kind())
	fmt.Fprintf(tw, "Creator:\t%s\n", info.Creator)
	fmt.Fprintf(tw, "Created:\t%s (%s)\n", formatTime(info.CreatedAt), humanize.Time(info.CreatedAt))
	fmt.Fprintf(tw, "Frozen:\t%s\n", frozen)
	fmt.Fprintf(tw, "Size:\t%s\n", common.FormatSize(info.SizeInBytes))
	tw.Flush()
}

func printManifest(w io.Writer, items []dataset.Item) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RELPATH\tSIZE\tID")
	var total int64
	for _, it := range items {
		total += it.SizeInBytes
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.RelPath, humanize.IBytes(uint64(it.SizeInBytes)), it.ID)
	}
	tw.Flush()
	fmt.Fprintf(w, "%s items, %s\n", humanize.Comma(int64(len(items))), humanize.IBytes(uint64(total)))
}

func printPagination(w io.Writer, s search.Snapshot) {
	fmt.Fprintf(w, "Page %d of %d (%s datasets, %d per page)\n",
		s.CurrentPage, max(s.TotalPages, 1), humanize.Comma(int64(s.TotalEntries)), s.PageSize)
}
