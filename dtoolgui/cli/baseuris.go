package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/baseuri"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

var (
	baseURIsNoLocal bool
	baseURIsServer  bool

	s3Params  baseuri.S3Params
	smbParams baseuri.SMBParams
)

var baseURIsCmd = &cobra.Command{
	Use:   "base-uris",
	Short: "list the known base URIs",
	Long: `List base URIs from the application settings (local directories), the dtool
config (S3 and SMB endpoints) and the search permissions of the logged in user.`,
	Args: cobra.NoArgs,
	RunE: runBaseURIs,
}

var baseURIsAddCmd = &cobra.Command{
	Use:   "add PATH",
	Short: "remember a local directory as base URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := a.registry.AddLocal(args[0])
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Added %s", b)
		return nil
	},
}

var baseURIsRemoveCmd = &cobra.Command{
	Use:   "remove BASE_URI",
	Short: "forget a local base URI",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		b, err := baseuri.Parse(args[0])
		if err != nil {
			return err
		}
		if err := a.registry.RemoveLocal(b); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Removed %s", b)
		return nil
	},
}

var baseURIsS3Cmd = &cobra.Command{
	Use:   "s3 BUCKET",
	Short: "store the parameters of an S3 endpoint in the dtool config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.registry.SetS3Params(args[0], s3Params); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Stored s3://%s", args[0])
		return nil
	},
}

var baseURIsSMBCmd = &cobra.Command{
	Use:   "smb NAME",
	Short: "store the parameters of an SMB share in the dtool config",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.registry.SetSMBParams(args[0], smbParams); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Stored smb://%s", args[0])
		return nil
	},
}

func init() {
	baseURIsCmd.Flags().BoolVar(&baseURIsNoLocal, "no-local", false, "omit local directories")
	baseURIsCmd.Flags().BoolVar(&baseURIsServer, "server", false, "list the base URIs registered on the lookup server instead")

	f := baseURIsS3Cmd.Flags()
	f.StringVar(&s3Params.Endpoint, "endpoint", "", "S3 endpoint URL")
	f.StringVar(&s3Params.AccessKeyID, "access-key-id", "", "access key id")
	f.StringVar(&s3Params.SecretAccessKey, "secret-access-key", "", "secret access key")
	f.StringVar(&s3Params.DatasetPrefix, "prefix", "", "dataset prefix, shared by all buckets")

	f = baseURIsSMBCmd.Flags()
	f.StringVar(&smbParams.ServerName, "server", "", "server name")
	f.StringVar(&smbParams.ServerPort, "port", "445", "server port")
	f.StringVar(&smbParams.ServiceName, "service", "", "service (share) name")
	f.StringVar(&smbParams.Path, "path", "", "path inside the share")
	f.StringVar(&smbParams.Domain, "domain", "", "domain")
	f.StringVar(&smbParams.Username, "username", "", "username")
	f.StringVar(&smbParams.Password, "password", "", "password")

	baseURIsCmd.AddCommand(baseURIsAddCmd, baseURIsRemoveCmd, baseURIsS3Cmd, baseURIsSMBCmd)
}

func runBaseURIs(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if baseURIsServer {
		return printServerBaseURIs(ctx, cmd, a)
	}

	uris, err := a.registry.All(ctx, !baseURIsNoLocal, a.username())
	if err != nil {
		// the local and configured endpoints are still worth showing
		slog.Warn("Lookup server base URIs unavailable", "error", err)
	}
	out := cmd.OutOrStdout()
	for _, b := range uris {
		fmt.Fprintf(out, "%-6s %s\n", b.Scheme, b.URI())
	}
	if len(uris) == 0 {
		printInfo(out, "No base URIs configured. Add one with '%s base-uris add PATH'.", rootCmd.Name())
	}
	return nil
}

// printServerBaseURIs lists what the lookup server indexes, which needs admin rights on most servers
func printServerBaseURIs(ctx context.Context, cmd *cobra.Command, a *app) error {
	records, err := lookup.Retry(ctx, a.retrier, a.client.ListBaseURIs)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, r := range records {
		fmt.Fprintln(out, r["base_uri"])
	}
	return nil
}
