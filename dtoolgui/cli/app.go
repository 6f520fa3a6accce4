package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/prometheus/client_golang/prometheus"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/baseuri"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/cache"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/common"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/config"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/dataset"
	"github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui/lookup"
)

// app bundles the collaborators a command needs
type app struct {
	store    *config.Store
	settings *config.SettingsStore
	prefs    config.Settings
	metrics  *common.Metrics
	cache    *cache.Store
	client   *lookup.Client
	retrier  *lookup.AuthRetrier
	registry *baseuri.Registry
}

func newApp() (*app, error) {
	store := config.NewStore(configPath, config.NewBroker())
	if err := store.Load(); err != nil {
		return nil, fmt.Errorf("failed to load dtool config: %w", err)
	}
	settings, err := config.LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}
	prefs, err := settings.Get()
	if err != nil {
		return nil, err
	}

	a := &app{
		store:    store,
		settings: settings,
		prefs:    prefs,
		metrics:  common.NewMetrics(prometheus.NewRegistry()),
	}

	if prefs.CacheEnabled {
		c, err := cache.Open(prefs.CachePath)
		if err != nil {
			slog.Warn("Lookup cache unavailable", "path", prefs.CachePath, "error", err)
		} else {
			a.cache = c
		}
	}

	a.client, err = lookup.NewClientFromConfig(store, prefs.VerifySSL, a.metrics)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.retrier = lookup.NewAuthRetrier(a.client, a.promptToken)
	a.registry = baseuri.NewRegistry(store, settings, a.client)
	return a, nil
}

func (a *app) Close() {
	if a.client != nil {
		a.client.Close()
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			slog.Warn("Failed to close lookup cache", "error", err)
		}
	}
}

// bodyCache returns the cache as a dataset.BodyCache, nil when disabled
func (a *app) bodyCache() dataset.BodyCache {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

func (a *app) username() string {
	return a.store.GetDefault(config.KeyLookupServerUsername, "")
}

// promptToken asks for credentials and logs in again
func (a *app) promptToken(ctx context.Context) (string, error) {
	username, password, err := askCredentials(a.username())
	if err != nil {
		return "", err
	}
	return a.login(ctx, username, password)
}

func (a *app) login(ctx context.Context, username, password string) (string, error) {
	authURL := a.store.GetDefault(config.KeyLookupServerAuthURL, internal.DefaultAuthURL)
	token, err := a.client.Authenticate(ctx, authURL, username, password)
	if err != nil {
		return "", err
	}
	if err := a.store.Set(config.KeyLookupServerUsername, username); err != nil {
		return "", err
	}
	return token, nil
}

func askCredentials(username string) (string, string, error) {
	if err := survey.AskOne(&survey.Input{
		Message: "Username:",
		Default: username,
	}, &username, survey.WithValidator(survey.Required)); err != nil {
		return "", "", promptError(err)
	}

	var password string
	if err := survey.AskOne(&survey.Password{
		Message: "Password:",
	}, &password, survey.WithValidator(survey.Required)); err != nil {
		return "", "", promptError(err)
	}
	return username, password, nil
}

// promptError turns an interrupted prompt into a cancellation
func promptError(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return context.Canceled
	}
	return fmt.Errorf("failed to read input: %w", err)
}

// commandContext is cancelled on SIGINT and SIGTERM
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
