package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CODEGRAPH_HOME", home)

	cfg, err := Load(viper.New(), t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, "code_graph.sqlite"), cfg.DBPath)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, ".", cfg.Ingest.Root)
	assert.False(t, cfg.Ingest.Clean)
	assert.EqualValues(t, 1<<20, cfg.Ingest.MaxFileSize)
	assert.False(t, cfg.VectorEnabled())
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `db_path: /tmp/graph.sqlite
log:
  level: debug
ingest:
  root: ./src
  excludes:
    - generated/
vector:
  dsn: postgres://localhost/rag
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "codegraph.yaml"), []byte(yaml), 0o644))
	t.Setenv("CODEGRAPH_LOG_LEVEL", "warn")
	t.Setenv("CODEGRAPH_EMBEDDING_API_KEY", "sk-test")

	cfg, err := Load(viper.New(), dir)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/graph.sqlite", cfg.DBPath)
	assert.Equal(t, "warn", cfg.Log.Level, "environment overrides the file")
	assert.Equal(t, "./src", cfg.Ingest.Root)
	assert.Equal(t, []string{"generated/"}, cfg.Ingest.Excludes)
	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.True(t, cfg.VectorEnabled())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"bad log level", "log:\n  level: loud\n"},
		{"negative max size", "ingest:\n  max_file_size: -1\n"},
		{"malformed yaml", "db_path: [unterminated\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "codegraph.yaml"), []byte(tt.yaml), 0o644))

			_, err := Load(viper.New(), dir)
			assert.Error(t, err)
		})
	}
}

func TestDataHome(t *testing.T) {
	t.Run("explicit home", func(t *testing.T) {
		t.Setenv("CODEGRAPH_HOME", "/opt/codegraph")
		got, err := DataHome()
		require.NoError(t, err)
		assert.Equal(t, "/opt/codegraph", got)
	})

	t.Run("xdg data home", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("XDG is not consulted on Windows")
		}
		t.Setenv("CODEGRAPH_HOME", "")
		t.Setenv("XDG_DATA_HOME", "/xdg")
		got, err := DataHome()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/xdg", "codegraph"), got)
	})

	t.Run("user home", func(t *testing.T) {
		if runtime.GOOS == "windows" {
			t.Skip("covered by the unix layout")
		}
		home := t.TempDir()
		t.Setenv("CODEGRAPH_HOME", "")
		t.Setenv("XDG_DATA_HOME", "")
		t.Setenv("HOME", home)
		got, err := DataHome()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(home, ".local", "share", "codegraph"), got)
	})
}
