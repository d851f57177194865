package logger

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{
			name: "json format to stdout",
			config: &Config{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
		{
			name: "console format to stderr",
			config: &Config{
				Level:  "debug",
				Format: "console",
				Output: "stderr",
			},
		},
		{
			name: "unknown format falls back to json",
			config: &Config{
				Level:  "warn",
				Format: "xml",
				Output: "stdout",
			},
		},
		{
			name:   "empty config uses defaults",
			config: &Config{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, err := New(tt.config)
			require.NoError(t, err)
			require.NotNil(t, log)
			require.NotNil(t, log.Logger)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")

	log, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	log.Info("file output works", slog.String("key", "value"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "file output works")
	assert.Contains(t, string(data), `"key":"value"`)
}

func TestNew_FileOutputBadPath(t *testing.T) {
	_, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "nested", "app.log"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open log file")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestNewDefault(t *testing.T) {
	log := NewDefault()
	require.NotNil(t, log)
	require.NotNil(t, log.Logger)
}

func TestWith(t *testing.T) {
	log := NewDefault()
	child := log.With("component", "test")
	require.NotNil(t, child)
	assert.NotSame(t, log, child)
}
