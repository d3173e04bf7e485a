package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	t.Parallel()
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"warn":    slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"loud":    slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestFromSettingsEnvOverride(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	cfg := FromSettings("debug", "JSON")
	require.Equal(t, slog.LevelError, cfg.Level)
	require.True(t, cfg.JSON)
}

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logger := Setup(Config{Level: slog.LevelWarn, JSON: true, Output: &buf})
	logger.Info("hidden")
	logger.Warn("shown", "component", "test")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	require.Equal(t, "shown", rec["msg"])
	require.Equal(t, "test", rec["component"])
	require.Same(t, logger, slog.Default())
}
