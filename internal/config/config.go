package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

const (
	// EnvPrefix prefixes every environment override, e.g. CODEGRAPH_DB_PATH.
	EnvPrefix = "CODEGRAPH"

	configName      = "codegraph"
	defaultDBFile   = "code_graph.sqlite"
	defaultLogLevel = "info"
)

// Config represents the codegraph configuration
type Config struct {
	DBPath    string          `mapstructure:"db_path"`
	Log       LogConfig       `mapstructure:"log"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// IngestConfig represents ingestion configuration
type IngestConfig struct {
	Root        string   `mapstructure:"root"`
	Clean       bool     `mapstructure:"clean"`
	Excludes    []string `mapstructure:"excludes"`
	MaxFileSize int64    `mapstructure:"max_file_size"`
}

// MetricsConfig represents the metrics endpoint configuration
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// VectorConfig represents the external vector store configuration
type VectorConfig struct {
	DSN string `mapstructure:"dsn"`
}

// EmbeddingConfig represents the embedding provider configuration
type EmbeddingConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// VectorEnabled reports whether both vector search collaborators can be
// built.
func (c *Config) VectorEnabled() bool {
	return c.Vector.DSN != "" && c.Embedding.APIKey != ""
}

// DataHome returns the directory holding the default graph database.
// Priority: $CODEGRAPH_HOME -> $XDG_DATA_HOME/codegraph -> ~/.local/share/codegraph (Unix) / %LOCALAPPDATA%\codegraph (Windows)
func DataHome() (string, error) {
	if home := os.Getenv("CODEGRAPH_HOME"); home != "" {
		return home, nil
	}

	if runtime.GOOS != "windows" {
		if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
			return filepath.Join(xdgData, "codegraph"), nil
		}
	}

	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	switch runtime.GOOS {
	case "windows":
		return filepath.Join(userHome, "AppData", "Local", "codegraph"), nil
	default:
		return filepath.Join(userHome, ".local", "share", "codegraph"), nil
	}
}

// SetDefaults registers every key with its default value. Keys must be known
// to viper for environment overrides to reach Unmarshal.
func SetDefaults(v *viper.Viper) error {
	home, err := DataHome()
	if err != nil {
		return err
	}

	v.SetDefault("db_path", filepath.Join(home, defaultDBFile))
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.file", "")
	v.SetDefault("ingest.root", ".")
	v.SetDefault("ingest.clean", false)
	v.SetDefault("ingest.excludes", []string{})
	v.SetDefault("ingest.max_file_size", 1<<20)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("vector.dsn", "")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.model", "")
	v.SetDefault("embedding.base_url", "")
	return nil
}

// Load reads codegraph.yaml from the first of dirs that has one, then applies
// CODEGRAPH_* environment overrides and any flags already bound to v. A
// missing config file is not an error.
func Load(v *viper.Viper, dirs ...string) (*Config, error) {
	if err := SetDefaults(v); err != nil {
		return nil, err
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.DBPath) == "" {
		return errors.New("db_path must not be empty")
	}
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		return fmt.Errorf("invalid log.level %q: %w", cfg.Log.Level, err)
	}
	if cfg.Ingest.MaxFileSize < 0 {
		return fmt.Errorf("ingest.max_file_size must not be negative, got: %d", cfg.Ingest.MaxFileSize)
	}
	return nil
}
