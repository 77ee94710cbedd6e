package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.Indexer.AutoMigrate {
		t.Error("Expected Indexer.AutoMigrate=true")
	}
	if cfg.Indexer.StaleWorkerAfter != 300 {
		t.Errorf("Expected StaleWorkerAfter=300, got %d", cfg.Indexer.StaleWorkerAfter)
	}

	if cfg.HTTPAPI.Enabled {
		t.Error("Expected HTTPAPI.Enabled=false by default")
	}
	if cfg.HTTPAPI.Port != 8298 {
		t.Errorf("Expected Port=8298, got %d", cfg.HTTPAPI.Port)
	}
	if cfg.HTTPAPI.Host != "localhost" {
		t.Errorf("Expected Host=localhost, got %s", cfg.HTTPAPI.Host)
	}
	if !cfg.HTTPAPI.CORS {
		t.Error("Expected CORS=true")
	}

	if cfg.Notebook.InMemory {
		t.Error("Expected Notebook.InMemory=false by default")
	}
	if cfg.Notebook.DBPath == "" {
		t.Error("Expected Notebook.DBPath to be set")
	}
	if filepath.Base(cfg.Notebook.DBPath) != "index.db" {
		t.Errorf("Expected db file named index.db, got %s", filepath.Base(cfg.Notebook.DBPath))
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Expected Logging.Level=info, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Errorf("Expected Logging.Format=console, got %s", cfg.Logging.Format)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		modify    func(*Config)
		expectErr bool
	}{
		{
			name:      "valid config",
			modify:    func(c *Config) {},
			expectErr: false,
		},
		{
			name: "empty db path when not in-memory",
			modify: func(c *Config) {
				c.Notebook.DBPath = ""
			},
			expectErr: true,
		},
		{
			name: "empty db path is fine when in-memory",
			modify: func(c *Config) {
				c.Notebook.InMemory = true
				c.Notebook.DBPath = ""
			},
			expectErr: false,
		},
		{
			name: "invalid http api port",
			modify: func(c *Config) {
				c.HTTPAPI.Enabled = true
				c.HTTPAPI.Port = 99999
			},
			expectErr: true,
		},
		{
			name: "missing http api host when enabled",
			modify: func(c *Config) {
				c.HTTPAPI.Enabled = true
				c.HTTPAPI.Host = ""
			},
			expectErr: true,
		},
		{
			name: "invalid logging level",
			modify: func(c *Config) {
				c.Logging.Level = "invalid"
			},
			expectErr: true,
		},
		{
			name: "invalid logging format",
			modify: func(c *Config) {
				c.Logging.Format = "xml"
			},
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)

			err := cfg.Validate()
			if tt.expectErr && err == nil {
				t.Error("Expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestLoadConfig_NoFile(t *testing.T) {
	tmpDir := t.TempDir()
	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	oldHome := os.Getenv("HOME")
	os.Setenv("HOME", tmpDir)
	defer os.Setenv("HOME", oldHome)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Expected no error with missing config, got: %v", err)
	}

	if cfg == nil {
		t.Fatal("Expected config, got nil")
	}

	if cfg.HTTPAPI.Port != 8298 {
		t.Errorf("Expected default port 8298, got %d", cfg.HTTPAPI.Port)
	}
}

func TestLoadConfig_WithFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
notebook:
  store_path: /tmp/test-notebook
  db_path: /tmp/test-notebook/index.db
  in_memory: false
indexer:
  auto_migrate: false
  stale_worker_after_seconds: 60
http_api:
  enabled: true
  port: 4000
  host: 127.0.0.1
  cors: false
logging:
  level: debug
  format: json
`

	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	oldWd, _ := os.Getwd()
	defer os.Chdir(oldWd) //nolint:errcheck
	_ = os.Chdir(tmpDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Notebook.DBPath != "/tmp/test-notebook/index.db" {
		t.Errorf("Expected db path=/tmp/test-notebook/index.db, got %s", cfg.Notebook.DBPath)
	}
	if cfg.Indexer.AutoMigrate {
		t.Error("Expected auto_migrate=false, got true")
	}
	if cfg.Indexer.StaleWorkerAfter != 60 {
		t.Errorf("Expected stale_worker_after_seconds=60, got %d", cfg.Indexer.StaleWorkerAfter)
	}
	if cfg.HTTPAPI.Port != 4000 {
		t.Errorf("Expected port=4000, got %d", cfg.HTTPAPI.Port)
	}
	if cfg.HTTPAPI.CORS {
		t.Error("Expected CORS=false, got true")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected level=debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format=json, got %s", cfg.Logging.Format)
	}
}

func TestEnsureConfigDir(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := &Config{
		Notebook: NotebookConfig{
			DBPath: filepath.Join(tmpDir, "subdir", "index.db"),
		},
	}

	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "subdir")); os.IsNotExist(err) {
		t.Error("Config directory was not created")
	}
}

func TestEnsureConfigDir_InMemorySkipsCreation(t *testing.T) {
	cfg := &Config{Notebook: NotebookConfig{InMemory: true}}
	if err := cfg.EnsureConfigDir(); err != nil {
		t.Fatalf("EnsureConfigDir failed for in-memory config: %v", err)
	}
}

func TestConfigPath(t *testing.T) {
	path := ConfigPath()
	if path == "" {
		t.Error("ConfigPath returned empty string")
	}

	homeDir, _ := os.UserHomeDir()
	expected := filepath.Join(homeDir, ".noteindex")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}
