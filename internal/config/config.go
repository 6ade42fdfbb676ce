// Package config holds the application paths, settings file and logging
// setup.
package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

// version of the application.
var version = "0.1.0"

const (
	appName        string = "cosmicding"   // Default name of the application
	command        string = "cosmicding"   // Default name of the executable
	MainDBName     string = "cosmicding.db" // Default name of the main database
	configFilename string = "config.yml"   // Default settings filename
)

type (
	AppConfig struct {
		Name    string      `json:"name"`    // Name of the application
		Cmd     string      `json:"cmd"`     // Name of the executable
		Version string      `json:"version"` // Version of the application
		DBName  string      `json:"db"`      // Database name
		Env     environment `json:"env"`     // Application environment variables
		Path    path        `json:"path"`    // Application paths
		Verbose int         `json:"-"`       // Logging level
	}

	path struct {
		Data       string `json:"data"`   // Path to store database
		Database   string `json:"db"`     // Path to the database file
		ConfigFile string `json:"config"` // Path to settings file
	}

	environment struct {
		Home string `json:"home"` // Environment variable overriding the data directory
	}
)

// App is the default application configuration.
var App = &AppConfig{
	Name:    appName,
	Cmd:     command,
	Version: version,
	DBName:  MainDBName,
	Env: environment{
		Home: "COSMICDING_HOME",
	},
}

// SetAppPaths sets the app data path.
func SetAppPaths(p string) {
	App.Path.Data = p
	App.Path.Database = filepath.Join(p, App.DBName)
	App.Path.ConfigFile = filepath.Join(p, configFilename)
}

// SetVerbosity installs the default logger; each step of verbose lowers the
// level from error down to debug.
func SetVerbosity(verbose int) {
	levels := []slog.Level{
		slog.LevelError,
		slog.LevelWarn,
		slog.LevelInfo,
		slog.LevelDebug,
	}
	level := levels[min(max(verbose, 0), len(levels)-1)]
	App.Verbose = verbose

	logger := slog.New(
		slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				if a.Key == "source" {
					if source, ok := a.Value.Any().(*slog.Source); ok {
						dir, file := filepath.Split(source.File)
						source.File = filepath.Join(filepath.Base(filepath.Clean(dir)), file)

						return slog.Attr{Key: "source", Value: slog.AnyValue(source)}
					}
				}

				return a
			},
		}),
	)
	slog.SetDefault(logger)

	slog.Debug("logging", "level", level)
}
