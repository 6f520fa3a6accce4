package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/logging"
)

const version = "0.1.0"

var (
	verbosity    int
	quiet        bool
	debug        bool
	logFile      string
	configPath   string
	settingsPath string

	logCloser io.Closer
)

// rootCmd is the root command
var rootCmd = &cobra.Command{
	Use:     internal.DefaultAppCMDShortCut,
	Short:   "browse, search and copy dtool datasets",
	Version: version,
	Long: `Browse local and remote dtool datasets, search the dtool lookup server,
inspect readmes and manifests, lay out provenance graphs and copy datasets
between base URIs.`,
	Example: `  # Authenticate with the lookup server
  $ dtool-lookup-gui login -u alice

  # List base URIs known from settings, dtool config and the server
  $ dtool-lookup-gui base-uris

  # Search the lookup server
  $ dtool-lookup-gui search 'simulation' --page-size 20

  # Show a dataset and its provenance graph
  $ dtool-lookup-gui show 1a1f9fad-8589-413e-9602-5bbd66bfe675
  $ dtool-lookup-gui graph 1a1f9fad-8589-413e-9602-5bbd66bfe675`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		opts := logging.Options{
			Verbose: verbosity,
			Quiet:   quiet,
			Debug:   debug,
			LogFile: logFile,
			Console: cmd.ErrOrStderr(),
		}
		_, closer, err := logging.Setup(opts)
		if err != nil {
			return err
		}
		logCloser = closer
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute runs the command line and returns the process exit code
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}
	if logCloser != nil {
		logCloser.Close()
	}
	if common.IsCancellation(err) {
		return 0
	}
	printError(rootCmd.ErrOrStderr(), "%v", err)
	if errors.Is(err, common.ErrAuthFailure) {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "\nRun '%s login' to authenticate.\n", rootCmd.Name())
	}
	return 1
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&verbosity, "verbose", "v", "print info messages, twice for debug messages")
	flags.BoolVarP(&quiet, "quiet", "q", false, "print errors only")
	flags.BoolVar(&debug, "debug", false, "print debug messages")
	flags.StringVar(&logFile, "log", "", "also write a JSON log to this file")
	flags.Lookup("log").NoOptDefVal = internal.DefaultLogFile
	flags.StringVar(&configPath, "config", internal.DefaultDtoolConfigFile, "dtool config file")
	flags.StringVar(&settingsPath, "settings", internal.DefaultSettingsFile, "application settings file")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(baseURIsCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(graphCmd)
	rootCmd.AddCommand(copyCmd)
	rootCmd.AddCommand(datasetCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(infoCmd)
}
