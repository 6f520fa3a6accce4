package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

var (
	showManifest bool
	showFollow   bool
	showLint     bool
	showNoLint   bool
)

var showCmd = &cobra.Command{
	Use:   "show URI|UUID",
	Short: "show a dataset's metadata and readme",
	Long: `Show a dataset's metadata, tags, annotations and readme. UUIDs inside the readme
are highlighted and listed as references; --follow looks each of them up.
A UUID argument is resolved through the lookup server.`,
	Example: `  $ dtool-lookup-gui show file:///data/datasets/sim-01 --manifest
  $ dtool-lookup-gui show 1a1f9fad-8589-413e-9602-5bbd66bfe675 --follow`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	showCmd.Flags().BoolVarP(&showManifest, "manifest", "m", false, "list the manifest items")
	showCmd.Flags().BoolVar(&showFollow, "follow", false, "look up the datasets referenced in the readme")
	showCmd.Flags().BoolVar(&showLint, "lint", false, "lint the readme even if disabled in the settings")
	showCmd.Flags().BoolVar(&showNoLint, "no-lint", false, "skip readme linting")
}

// resolveDataset opens a local URI or looks a UUID up on the server
func resolveDataset(ctx context.Context, a *app, arg string) (dataset.Dataset, error) {
	if !common.IsUUID(arg) {
		return dataset.FromURI(ctx, arg)
	}
	records, err := lookup.Retry(ctx, a.retrier, func(ctx context.Context) ([]lookup.DatasetInfo, error) {
		return a.client.ByUUID(ctx, arg)
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: dataset %s", common.ErrNotFound, arg)
	}
	return dataset.FromLookup(records[0], a.client, a.bodyCache()), nil
}

func runShow(cmd *cobra.Command, args []string) error {
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
	out := cmd.OutOrStdout()
	printInfoBlock(out, ds)

	tags, err := ds.Tags(ctx)
	if err != nil {
		return err
	}
	if len(tags) > 0 {
		fmt.Fprintf(out, "Tags:     %s\n", strings.Join(tags, ", "))
	}
	annotations, err := ds.Annotations(ctx)
	if err != nil {
		return err
	}
	if len(annotations) > 0 {
		body, err := yaml.Marshal(annotations)
		if err != nil {
			return fmt.Errorf("failed to render annotations: %w", err)
		}
		fmt.Fprintf(out, "Annotations:\n%s", indent(string(body)))
	}

	readme, err := ds.Readme(ctx)
	if err != nil {
		return err
	}
	refs, err := dataset.ReadmeReferences(readme)
	if err != nil {
		slog.Warn("Readme is not valid YAML", "uri", ds.Info().URI, "error", err)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, styles.Bold.Render("README"))
	fmt.Fprint(out, highlightReferences(readme, refs))

	if (a.prefs.YAMLLintingEnabled || showLint) && !showNoLint {
		for _, p := range dataset.LintReadme(readme) {
			printWarning(out, "%s", p)
		}
	}

	if len(refs) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Bold.Render("REFERENCES"))
		if err := printReferences(ctx, out, a, refs); err != nil {
			return err
		}
	}

	if showManifest {
		items, err := ds.Manifest(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, styles.Bold.Render("MANIFEST"))
		printManifest(out, items)
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	return "  " + strings.Join(lines, "\n  ") + "\n"
}

// highlightReferences colors each referenced UUID on its line
func highlightReferences(readme string, refs []dataset.Reference) string {
	if readme == "" {
		return ""
	}
	lines := strings.Split(readme, "\n")
	for _, r := range refs {
		i := r.Line - 1
		if i < 0 || i >= len(lines) {
			continue
		}
		lines[i] = strings.Replace(lines[i], r.UUID, refColor.Sprint(r.UUID), 1)
	}
	text := strings.Join(lines, "\n")
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	return text
}

func printReferences(ctx context.Context, w io.Writer, a *app, refs []dataset.Reference) error {
	var found map[string][]lookup.DatasetInfo
	if showFollow {
		found = make(map[string][]lookup.DatasetInfo, len(refs))
		for _, r := range refs {
			r := r
			if _, done := found[r.UUID]; done {
				continue
			}
			records, err := lookup.Retry(ctx, a.retrier, func(ctx context.Context) ([]lookup.DatasetInfo, error) {
				return a.client.ByUUID(ctx, r.UUID)
			})
			if err != nil {
				return err
			}
			found[r.UUID] = records
		}
	}

	sort.SliceStable(refs, func(i, j int) bool { return refs[i].Line < refs[j].Line })
	for _, r := range refs {
		fmt.Fprintf(w, "  %d:%d  %s  %s", r.Line, r.Column, r.Path, refColor.Sprint(r.UUID))
		if found != nil {
			records := found[r.UUID]
			if len(records) == 0 {
				fmt.Fprint(w, "  (not in database)")
			} else {
				fmt.Fprintf(w, "  %s at %s", records[0].Name, records[0].URI)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}
