// Package config loads the site configuration.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/oliverames/ames-consulting/source"
)

// Environment variables that override the config file path and the journal path.
const (
	EnvConfigPath  = "STREAM_CONFIG"
	EnvJournalPath = "STREAM_DB"
)

// Config holds the site and service configuration. Keys use the same
// camelCase names in YAML and JSON files.
type Config struct {
	Provider         string `yaml:"provider"`
	JSONFeedURL      string `yaml:"jsonFeedUrl"`
	PortfolioTag     string `yaml:"portfolioTag"`
	HomePreviewLimit int    `yaml:"homePreviewLimit"`
	SiteTitle        string `yaml:"siteTitle"`

	DataDir        string `yaml:"dataDir"`
	PreferEnhanced bool   `yaml:"preferEnhanced"`

	ListenAddr    string `yaml:"listenAddr"`
	JournalPath   string `yaml:"journalPath"`
	ProbeSchedule string `yaml:"probeSchedule"`
	Timezone      string `yaml:"timezone"`
	LogLevel      string `yaml:"logLevel"`
}

// Defaults returns a Config with all default values set.
func Defaults() Config {
	return Config{
		Provider:         source.ProviderLocal,
		PortfolioTag:     "portfolio",
		HomePreviewLimit: 6,
		SiteTitle:        "ames.consulting",
		PreferEnhanced:   true,
		ListenAddr:       ":8080",
		JournalPath:      "./stream.db",
		ProbeSchedule:    "@every 15m",
		Timezone:         "UTC",
		LogLevel:         "info",
	}
}

// Load reads a YAML or JSON config file over the defaults and validates the
// result. STREAM_CONFIG replaces path and STREAM_DB replaces journalPath.
// A missing file, or an empty path, yields the defaults.
func Load(path string) (Config, error) {
	path = ResolvePath(path)
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
			}
		}
	}

	if envDB := os.Getenv(EnvJournalPath); envDB != "" {
		cfg.JournalPath = envDB
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that values are usable.
func (c *Config) Validate() error {
	switch c.Provider {
	case source.ProviderLocal, source.ProviderFeed:
	default:
		return fmt.Errorf("invalid provider %q: must be %q or %q", c.Provider, source.ProviderLocal, source.ProviderFeed)
	}
	if c.HomePreviewLimit <= 0 {
		return fmt.Errorf("homePreviewLimit must be positive, got %d", c.HomePreviewLimit)
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	if c.ProbeSchedule != "" {
		if _, err := cron.ParseStandard(c.ProbeSchedule); err != nil {
			return fmt.Errorf("invalid probeSchedule %q: %w", c.ProbeSchedule, err)
		}
	}
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid logLevel %q: %w", c.LogLevel, err)
	}
	return nil
}

// Location returns the configured time zone, or UTC if it cannot be loaded.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Level returns the configured log level, defaulting to info.
func (c Config) Level() zapcore.Level {
	level, err := zapcore.ParseLevel(c.LogLevel)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// Sources returns the selector configuration. Dataset URLs are the defaults;
// DataDir decides which filesystem they resolve against.
func (c Config) Sources() source.Config {
	local := source.DefaultLocalOptions()
	local.PreferEnhanced = c.PreferEnhanced
	return source.Config{
		Provider: c.Provider,
		FeedURL:  strings.TrimSpace(c.JSONFeedURL),
		Local:    local,
	}
}
