package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/cache"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

var (
	cacheOlderThan time.Duration
	cacheURI       string
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "manage the readme and manifest cache",
}

var cachePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "drop cached readmes and manifests",
	Example: `  $ dtool-lookup-gui cache purge
  $ dtool-lookup-gui cache purge --older-than 720h
  $ dtool-lookup-gui cache purge --uri s3://bucket/1a1f9fad-8589-413e-9602-5bbd66bfe675`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		store := a.cache
		if store == nil {
			// caching is disabled but an old database may still be around
			if store, err = cache.Open(a.prefs.CachePath); err != nil {
				return err
			}
			defer store.Close()
		}

		out := cmd.OutOrStdout()
		switch {
		case cacheURI != "":
			err = store.Delete(ctx, cacheURI)
			if err == nil {
				printSuccess(out, "Dropped cached bodies of %s", cacheURI)
			}
		case cacheOlderThan > 0:
			var n int64
			n, err = store.PurgeOlderThan(ctx, time.Now().Add(-cacheOlderThan))
			if err == nil {
				printSuccess(out, "Dropped %d cached bodies", n)
			}
		default:
			err = store.Purge(ctx)
			if err == nil {
				printSuccess(out, "Emptied %s", store.Path())
			}
		}
		return err
	},
}

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "show lookup server and user information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		sections := []struct {
			title string
			fetch func(ctx context.Context) (map[string]any, error)
		}{
			{"SERVER", a.client.Config},
			{"VERSIONS", a.client.Versions},
			{"SUMMARY", a.client.Summary},
			{"USER", func(ctx context.Context) (map[string]any, error) {
				return a.client.UserInfo(ctx, a.username())
			}},
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Lookup server: %s\n", a.client.BaseURL())
		for _, s := range sections {
			body, err := lookup.Retry(ctx, a.retrier, s.fetch)
			if err != nil {
				return err
			}
			text, err := yaml.Marshal(body)
			if err != nil {
				return fmt.Errorf("failed to render %s: %w", s.title, err)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, styles.Bold.Render(s.title))
			fmt.Fprint(out, indent(string(text)))
		}
		return nil
	},
}

func init() {
	cachePurgeCmd.Flags().DurationVar(&cacheOlderThan, "older-than", 0, "only drop bodies fetched longer ago")
	cachePurgeCmd.Flags().StringVar(&cacheURI, "uri", "", "only drop the bodies of this dataset URI")
	cacheCmd.AddCommand(cachePurgeCmd)
}
