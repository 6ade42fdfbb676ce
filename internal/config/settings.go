package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/vkhitrin/cosmicding-sub000/pkg/bookmark"
)

var (
	ErrConfigFileExists = errors.New("config file already exists")
	ErrInvalidSettings  = errors.New("invalid settings")
)

// Settings is the YAML settings file.
type Settings struct {
	ItemsPerPage int           `yaml:"items_per_page"`
	Sort         string        `yaml:"sort"`
	StartupDelay time.Duration `yaml:"startup_delay"`
	Favicons     Favicons      `yaml:"favicons"`
	HTTP         HTTP          `yaml:"http"`
}

type Favicons struct {
	Workers int `yaml:"workers"`
	Rate    int `yaml:"rate"` // requests per second
}

type HTTP struct {
	Timeout time.Duration `yaml:"timeout"`
}

// Defaults returns the settings used when no file exists.
func Defaults() *Settings {
	return &Settings{
		ItemsPerPage: 10,
		Sort:         bookmark.SortNewest.String(),
		StartupDelay: time.Second,
		Favicons: Favicons{
			Workers: 4,
			Rate:    8,
		},
		HTTP: HTTP{
			Timeout: 30 * time.Second,
		},
	}
}

// SortOrder returns the parsed sort setting.
func (s *Settings) SortOrder() bookmark.SortOrder {
	o, err := bookmark.ParseSortOrder(s.Sort)
	if err != nil {
		return bookmark.SortNewest
	}

	return o
}

// Validate rejects settings the application cannot run with.
func Validate(s *Settings) error {
	switch {
	case s.ItemsPerPage <= 0:
		return fmt.Errorf("%w: items_per_page must be positive", ErrInvalidSettings)
	case s.StartupDelay < 0:
		return fmt.Errorf("%w: startup_delay is negative", ErrInvalidSettings)
	case s.Favicons.Workers <= 0:
		return fmt.Errorf("%w: favicons.workers must be positive", ErrInvalidSettings)
	case s.Favicons.Rate <= 0:
		return fmt.Errorf("%w: favicons.rate must be positive", ErrInvalidSettings)
	case s.HTTP.Timeout <= 0:
		return fmt.Errorf("%w: http.timeout must be positive", ErrInvalidSettings)
	}

	if _, err := bookmark.ParseSortOrder(s.Sort); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	return nil
}

// Load reads the settings file at p. A missing file yields the defaults;
// keys absent from the file keep their default value.
func Load(p string) (*Settings, error) {
	s := Defaults()

	content, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			slog.Debug("settings file not found, loading defaults", "path", p)
			return s, nil
		}

		return nil, fmt.Errorf("reading settings: %w", err)
	}

	if err := yaml.Unmarshal(content, s); err != nil {
		return nil, fmt.Errorf("unmarshalling settings: %w", err)
	}

	if err := Validate(s); err != nil {
		return nil, err
	}

	slog.Debug("loaded settings file", "path", p)

	return s, nil
}

// Write dumps the default settings to p. An existing file is only replaced
// with force.
func Write(p string, force bool) error {
	if _, err := os.Stat(p); err == nil && !force {
		return fmt.Errorf("%s %w. use '--force' to overwrite", p, ErrConfigFileExists)
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshalling settings: %w", err)
	}

	if err := os.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("writing settings: %w", err)
	}

	return nil
}
