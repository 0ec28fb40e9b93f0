package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	want := Config{
		TabbycatURL:    "https://tabs.example.org",
		TournamentSlug: "worlds2026",
		APIKey:         "secret-token",
	}

	require.NoError(t, Save(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	got, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Config{}, got)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, Save(path, Config{
		TabbycatURL:    "https://tabs.example.org",
		TournamentSlug: "worlds2026",
		APIKey:         "from-file",
	}))

	t.Setenv("TABSYNC_API_KEY", "from-env")

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", got.APIKey)
	assert.Equal(t, "worlds2026", got.TournamentSlug)
}

func TestValidate(t *testing.T) {
	full := Config{
		TabbycatURL:    "https://tabs.example.org",
		TournamentSlug: "worlds2026",
		APIKey:         "k",
	}
	require.NoError(t, full.Validate())

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"missing url", Config{TournamentSlug: "s", APIKey: "k"}, "tabbycat_url"},
		{"missing slug", Config{TabbycatURL: "u", APIKey: "k"}, "tournament_slug"},
		{"missing key", Config{TabbycatURL: "u", TournamentSlug: "s"}, "api_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
