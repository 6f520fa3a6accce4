package internal

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for the settings directory and log file names
	DefaultAppName        = "dtool-lookup-gui"
	DefaultAppCMDShortCut = "dtool-lookup-gui"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir       = filepath.Join(DefaultConfigPath, ".cache")
	DefaultCacheDBPath    = filepath.Join(DefaultCacheDir, "lookup-cache.db")
	DefaultSettingsFile   = filepath.Join(DefaultConfigPath, "settings.json")
	DefaultLogFile        = filepath.Join(DefaultConfigPath, DefaultAppName+".log")

	// dtool's own config file, shared with the dtool command line tools
	DefaultDtoolConfigFile = filepath.Join(getHomeDir(), ".config", "dtool", "dtool.json")

	DefaultItemDownloadDir = filepath.Join(getHomeDir(), "Downloads")

	// Default lookup server settings
	DefaultLookupURL = "http://localhost:5000"
	DefaultAuthURL   = "http://localhost:5001/token"
)

// ConfigChangedTopic is published whenever the persisted dtool config changes.
const ConfigChangedTopic = "dtool-config-changed"

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetFileLogger returns a zerolog logger writing JSON lines to w at the given level
func GetFileLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Str("app", DefaultAppName).Logger()
}
