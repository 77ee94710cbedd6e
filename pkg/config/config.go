package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration for the
// notebook indexer.
type Config struct {
	Notebook NotebookConfig `mapstructure:"notebook"`
	Indexer  IndexerConfig  `mapstructure:"indexer"`
	HTTPAPI  HTTPAPIConfig  `mapstructure:"http_api"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// NotebookConfig describes where the notebook store and its index live.
type NotebookConfig struct {
	StorePath string `mapstructure:"store_path"`
	DBPath    string `mapstructure:"db_path"`
	InMemory  bool   `mapstructure:"in_memory"`
}

// IndexerConfig holds indexer behavior configuration.
type IndexerConfig struct {
	AutoMigrate      bool `mapstructure:"auto_migrate"`
	StaleWorkerAfter int  `mapstructure:"stale_worker_after_seconds"`
}

// HTTPAPIConfig holds the optional read-only status/query HTTP server.
type HTTPAPIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	CORS    bool   `mapstructure:"cors"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console, json
}

// DefaultConfig returns configuration with sane default values.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".noteindex")

	return &Config{
		Notebook: NotebookConfig{
			StorePath: filepath.Join(homeDir, "Notebook"),
			DBPath:    filepath.Join(configDir, "index.db"),
			InMemory:  false,
		},
		Indexer: IndexerConfig{
			AutoMigrate:      true,
			StaleWorkerAfter: 300,
		},
		HTTPAPI: HTTPAPIConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    8298,
			CORS:    true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from YAML file with fallback to defaults.
// Searches in multiple locations:
//  1. ./config.yaml (current directory)
//  2. ~/.noteindex/config.yaml (user home)
//  3. /etc/noteindex/config.yaml (system-wide)
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	homeDir, _ := os.UserHomeDir()
	v.AddConfigPath(filepath.Join(homeDir, ".noteindex"))
	v.AddConfigPath("/etc/noteindex")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// setDefaults sets default values in Viper.
func setDefaults(v *viper.Viper) {
	homeDir, _ := os.UserHomeDir()
	configDir := filepath.Join(homeDir, ".noteindex")

	v.SetDefault("notebook.store_path", filepath.Join(homeDir, "Notebook"))
	v.SetDefault("notebook.db_path", filepath.Join(configDir, "index.db"))
	v.SetDefault("notebook.in_memory", false)

	v.SetDefault("indexer.auto_migrate", true)
	v.SetDefault("indexer.stale_worker_after_seconds", 300)

	v.SetDefault("http_api.enabled", false)
	v.SetDefault("http_api.host", "localhost")
	v.SetDefault("http_api.port", 8298)
	v.SetDefault("http_api.cors", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Notebook.InMemory && c.Notebook.DBPath == "" {
		return fmt.Errorf("notebook.db_path is required unless notebook.in_memory is set")
	}
	if !c.Notebook.InMemory && c.Notebook.StorePath == "" {
		return fmt.Errorf("notebook.store_path is required")
	}

	if c.HTTPAPI.Enabled {
		if c.HTTPAPI.Port < 1 || c.HTTPAPI.Port > 65535 {
			return fmt.Errorf("http_api.port must be between 1 and 65535")
		}
		if c.HTTPAPI.Host == "" {
			return fmt.Errorf("http_api.host is required when the HTTP API is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{"console": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: console, json")
	}

	return nil
}

// EnsureConfigDir creates the configuration directory if it doesn't exist.
func (c *Config) EnsureConfigDir() error {
	if c.Notebook.InMemory {
		return nil
	}
	configDir := filepath.Dir(c.Notebook.DBPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return nil
}

// ConfigPath returns the path to the configuration directory.
func ConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".noteindex")
}
