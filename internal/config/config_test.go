package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("TALLYBOOK_CONFIG", filepath.Join(home, "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 128, cfg.Undo.MaxSteps)
	require.Equal(t, "£", cfg.UI.CurrencySymbol)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, filepath.Join(home, ".local", "share", "tallybook", "tallybook.db"), cfg.Database.Path)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/tmp/ledger.db"

[undo]
max_steps = 16

[ui]
currency_symbol = "$"
`), 0o600))
	t.Setenv("TALLYBOOK_CONFIG", path)
	t.Setenv("TALLYBOOK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "/tmp/ledger.db", cfg.Database.Path)
	require.Equal(t, 16, cfg.Undo.MaxSteps)
	require.Equal(t, "$", cfg.UI.CurrencySymbol)
	require.Equal(t, "2006-01-02", cfg.UI.DateFormat)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[undo\nmax_steps = ="), 0o600))
	t.Setenv("TALLYBOOK_CONFIG", path)

	_, err := Load()
	require.Error(t, err)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	t.Setenv("TALLYBOOK_CONFIG", path)

	cfg, err := Load()
	require.NoError(t, err)
	cfg.Undo.MaxSteps = 7
	cfg.Log.Format = "json"
	require.NoError(t, Save(cfg))

	got, err := Load()
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}
