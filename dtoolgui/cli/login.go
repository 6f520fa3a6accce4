package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
)

var (
	loginUsername string
	loginServer   string
	loginAuthURL  string
)

// loginCmd is the login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "authenticate with the dtool lookup server",
	Long: `Authenticate with the dtool lookup server and store the token in the dtool config,
where the dtool command line tools find it as well.`,
	Example: `  $ dtool-lookup-gui login -u alice
  $ dtool-lookup-gui login --server https://lookup.example.org --auth-url https://lookup.example.org/token`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "username, prompted for if empty")
	loginCmd.Flags().StringVarP(&loginServer, "server", "s", "", "lookup server URL to store in the dtool config")
	loginCmd.Flags().StringVar(&loginAuthURL, "auth-url", "", "token generator URL to store in the dtool config")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	updates := map[string]string{}
	if loginServer != "" {
		updates[config.KeyLookupServerURL] = loginServer
	}
	if loginAuthURL != "" {
		updates[config.KeyLookupServerAuthURL] = loginAuthURL
	}
	if len(updates) > 0 {
		store := config.NewStore(configPath, nil)
		if err := store.Load(); err != nil {
			return err
		}
		if err := store.SetValues(updates); err != nil {
			return err
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	username := loginUsername
	if username == "" {
		username = a.username()
	}
	username, password, err := askCredentials(username)
	if err != nil {
		return err
	}

	printInfo(cmd.OutOrStdout(), "Connecting to %s...", a.client.BaseURL())
	if _, err := a.login(ctx, username, password); err != nil {
		printErrorBox(cmd.OutOrStdout(), "Login failed", err.Error())
		return fmt.Errorf("authentication failed: %w", err)
	}

	printBox(cmd.OutOrStdout(), "✓ Login successful", fmt.Sprintf(
		"Username:       %s\nServer:         %s\nConfig saved:   %s",
		username, a.client.BaseURL(), a.store.Path()))
	return nil
}
