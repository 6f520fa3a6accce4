package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	internal "github.com/livMatS/dtool-lookup-gui-sub000/dtoolgui"

	"github.com/spf13/viper"
)

// Settings stores the application specific preferences.
// The values are read by viper from the settings file or environment variables.
type Settings struct {
	DependencyKeys              []string `mapstructure:"dependency-keys"`
	LocalBaseURIs               []string `mapstructure:"local-base-uris"`
	ItemDownloadDirectory       string   `mapstructure:"item-download-directory"`
	ChooseItemDownloadDirectory bool     `mapstructure:"choose-item-download-directory"`
	OpenDownloadedItem          bool     `mapstructure:"open-downloaded-item"`
	YAMLLintingEnabled          bool     `mapstructure:"yaml-linting-enabled"`
	VerifySSL                   bool     `mapstructure:"verify-ssl"`
	CacheEnabled                bool     `mapstructure:"cache-enabled"`
	CachePath                   string   `mapstructure:"cache-path"`
}

// DefaultDependencyKeys are the readme paths followed when building provenance graphs
var DefaultDependencyKeys = []string{"readme.derived_from.uuid", "annotations.source_dataset_uuid"}

// SettingsStore persists Settings through a private viper instance
type SettingsStore struct {
	mu   sync.Mutex
	v    *viper.Viper
	path string
}

// LoadSettings reads the settings file at path, falling back to defaults when it does not exist yet.
func LoadSettings(path string) (*SettingsStore, error) {
	if path == "" {
		path = internal.DefaultSettingsFile
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	v.SetDefault("dependency-keys", DefaultDependencyKeys)
	v.SetDefault("local-base-uris", []string{})
	v.SetDefault("item-download-directory", internal.DefaultItemDownloadDir)
	v.SetDefault("choose-item-download-directory", false)
	v.SetDefault("open-downloaded-item", false)
	v.SetDefault("yaml-linting-enabled", true)
	v.SetDefault("verify-ssl", true)
	v.SetDefault("cache-enabled", true)
	v.SetDefault("cache-path", internal.DefaultCacheDBPath)

	// e.g. verify-ssl becomes DTOOL_LOOKUP_GUI_VERIFY_SSL
	v.SetEnvPrefix("DTOOL_LOOKUP_GUI")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to access settings file: %w", err)
	}

	return &SettingsStore{v: v, path: path}, nil
}

// Path returns the settings file location
func (s *SettingsStore) Path() string {
	return s.path
}

// Get decodes the current settings
func (s *SettingsStore) Get() (Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get()
}

// get requires s.mu
func (s *SettingsStore) get() (Settings, error) {
	var out Settings
	if err := s.v.Unmarshal(&out); err != nil {
		return Settings{}, fmt.Errorf("unable to decode settings: %w", err)
	}
	return out, nil
}

// Update applies fn to the current settings and writes the result.
// Concurrent updates are serialised; fn must not call back into s.
func (s *SettingsStore) Update(fn func(*Settings)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.get()
	if err != nil {
		return err
	}
	fn(&current)

	s.v.Set("dependency-keys", current.DependencyKeys)
	s.v.Set("local-base-uris", current.LocalBaseURIs)
	s.v.Set("item-download-directory", current.ItemDownloadDirectory)
	s.v.Set("choose-item-download-directory", current.ChooseItemDownloadDirectory)
	s.v.Set("open-downloaded-item", current.OpenDownloadedItem)
	s.v.Set("yaml-linting-enabled", current.YAMLLintingEnabled)
	s.v.Set("verify-ssl", current.VerifySSL)
	s.v.Set("cache-enabled", current.CacheEnabled)
	s.v.Set("cache-path", current.CachePath)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	if err := s.v.WriteConfigAs(s.path); err != nil {
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	return nil
}

// LocalBaseURIs returns the persisted local base URI paths
func (s *SettingsStore) LocalBaseURIs() []string {
	st, err := s.Get()
	if err != nil {
		return nil
	}
	return st.LocalBaseURIs
}

// AddLocalBaseURI appends path unless it is already present
func (s *SettingsStore) AddLocalBaseURI(path string) error {
	return s.Update(func(st *Settings) {
		if !slices.Contains(st.LocalBaseURIs, path) {
			st.LocalBaseURIs = append(st.LocalBaseURIs, path)
		}
	})
}

// RemoveLocalBaseURI removes path and reports whether it was present
func (s *SettingsStore) RemoveLocalBaseURI(path string) (bool, error) {
	removed := false
	err := s.Update(func(st *Settings) {
		idx := slices.Index(st.LocalBaseURIs, path)
		if idx >= 0 {
			st.LocalBaseURIs = slices.Delete(st.LocalBaseURIs, idx, idx+1)
			removed = true
		}
	})
	return removed, err
}
