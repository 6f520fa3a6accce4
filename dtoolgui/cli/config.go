package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
)

var configPrefix string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "read and write the dtool config",
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "print a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		v, ok := store.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: config key %s", common.ErrNotFound, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "set a config value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		return store.Set(args[0], args[1])
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset KEY",
	Short: "remove a config value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		return store.Delete(args[0])
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "print all config keys and values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := loadStore()
		if err != nil {
			return err
		}
		snapshot := store.Snapshot()
		for _, k := range store.KeysWithPrefix(configPrefix) {
			v := snapshot[k]
			if k == config.KeyLookupServerToken || strings.Contains(k, "SECRET") || strings.Contains(k, "PASSWORD") {
				v = "********"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, v)
		}
		return nil
	},
}

var configWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "report changes made to the dtool config by other programs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		store, err := loadStore()
		if err != nil {
			return err
		}
		w, err := config.NewWatcher(store, 200*time.Millisecond)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		unsubscribe := store.Broker().Subscribe(internal.ConfigChangedTopic, func(ev config.Event) {
			printInfo(out, "%s changed (%s), %d keys", store.Path(), ev.Source, len(store.Keys()))
		})
		defer unsubscribe()

		if err := w.Start(ctx); err != nil {
			return err
		}
		printInfo(out, "Watching %s, press Ctrl+C to stop", store.Path())
		for {
			select {
			case <-ctx.Done():
				return w.Stop()
			case err := <-w.Errors():
				printWarning(out, "%v", err)
			}
		}
	},
}

func loadStore() (*config.Store, error) {
	store := config.NewStore(configPath, nil)
	if err := store.Load(); err != nil {
		return nil, err
	}
	return store, nil
}

func init() {
	configListCmd.Flags().StringVar(&configPrefix, "prefix", "", "only keys with this prefix, e.g. DTOOL_S3_")
	configCmd.AddCommand(configGetCmd, configSetCmd, configUnsetCmd, configListCmd, configWatchCmd)
}
