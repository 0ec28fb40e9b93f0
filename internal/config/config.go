// Package config loads and saves the CLI's connection settings.
//
// Settings live in a TOML file under the user's config directory and can be
// overridden per invocation through TABSYNC_* environment variables, so CI
// jobs never need a config file on disk.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

const envPrefix = "TABSYNC"

// Config holds everything needed to reach one tournament.
type Config struct {
	// TabbycatURL is the base URL of the Tabbycat instance, without the
	// /api/v1 suffix.
	TabbycatURL string `mapstructure:"tabbycat_url" toml:"tabbycat_url"`

	// TournamentSlug identifies the tournament within the instance.
	TournamentSlug string `mapstructure:"tournament_slug" toml:"tournament_slug"`

	// APIKey is the token sent as "Authorization: Token <key>".
	APIKey string `mapstructure:"api_key" toml:"api_key"`
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	switch {
	case strings.TrimSpace(c.TabbycatURL) == "":
		return fmt.Errorf("tabbycat_url is not set; run 'tabsync set' or set %s_TABBYCAT_URL", envPrefix)
	case strings.TrimSpace(c.TournamentSlug) == "":
		return fmt.Errorf("tournament_slug is not set; run 'tabsync set' or set %s_TOURNAMENT_SLUG", envPrefix)
	case strings.TrimSpace(c.APIKey) == "":
		return fmt.Errorf("api_key is not set; run 'tabsync set' or set %s_API_KEY", envPrefix)
	}
	return nil
}

// DefaultPath returns the config file location under the user config dir.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	return filepath.Join(dir, "tabsync", "config.toml"), nil
}

// Load reads the config file at path (missing file is not an error) and
// applies environment overrides.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(envPrefix)
	for _, key := range []string{"tabbycat_url", "tournament_slug", "api_key"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("failed to bind environment variable for %s: %w", key, err)
		}
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path, creating parent directories. The file is
// created user-readable only because it carries the API key.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
