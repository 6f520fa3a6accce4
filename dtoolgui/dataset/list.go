package dataset

import (
	"context"
	"log/slog"
	"sort"

	"github.com/sourcegraph/conc/pool"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/storage"
)

// listWorkers bounds concurrent dataset opens during enumeration
const listWorkers = 2

// ListLocal opens every dataset under a local base URI. Entries that fail to
// open are logged and skipped. The result is sorted by name.
func ListLocal(ctx context.Context, baseURI string) ([]Dataset, error) {
	uris, err := storage.List(baseURI)
	if err != nil {
		return nil, err
	}

	p := pool.NewWithResults[Dataset]().WithMaxGoroutines(listWorkers).WithContext(ctx)
	for _, uri := range uris {
		uri := uri
		p.Go(func(ctx context.Context) (Dataset, error) {
			ds, err := FromURI(ctx, uri)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				slog.Warn("Skipping unreadable dataset", "uri", uri, "error", err)
				return nil, nil
			}
			return ds, nil
		})
	}
	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	out := make([]Dataset, 0, len(results))
	for _, ds := range results {
		if ds != nil {
			out = append(out, ds)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Info(), out[j].Info()
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UUID < b.UUID
	})
	slog.Debug("Listed local base URI", "base_uri", baseURI, "datasets", len(out))
	return out, nil
}

// TagsOf reads the tags of ds, logging and ignoring failures
func TagsOf(ctx context.Context) func(Dataset) []string {
	return func(ds Dataset) []string {
		tags, err := ds.Tags(ctx)
		if err != nil {
			slog.Warn("Failed to read tags", "uri", ds.Info().URI, "error", err)
			return nil
		}
		return tags
	}
}
