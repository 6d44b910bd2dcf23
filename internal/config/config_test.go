// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, and duration parsing

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./shelf.db"

remote:
  base_url: "https://books.example.com/api"
  auth_token: "secret"
  timeout: "10s"

network:
  probe_addr: "8.8.8.8:443"
  probe_interval: "2s"
  offline_flag_path: "/tmp/shelfsync-offline"

sync:
  log_capacity: 25
  sample_limit: 5

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Path != "./shelf.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.Remote.BaseURL != "https://books.example.com/api" {
		t.Errorf("Remote.BaseURL = %q", cfg.Remote.BaseURL)
	}
	if cfg.Remote.AuthToken != "secret" {
		t.Errorf("Remote.AuthToken = %q", cfg.Remote.AuthToken)
	}
	if cfg.Remote.Timeout != 10*time.Second {
		t.Errorf("Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Network.ProbeAddr != "8.8.8.8:443" {
		t.Errorf("Network.ProbeAddr = %q", cfg.Network.ProbeAddr)
	}
	if cfg.Network.ProbeInterval != 2*time.Second {
		t.Errorf("Network.ProbeInterval = %v", cfg.Network.ProbeInterval)
	}
	if cfg.Network.OfflineFlagPath != "/tmp/shelfsync-offline" {
		t.Errorf("Network.OfflineFlagPath = %q", cfg.Network.OfflineFlagPath)
	}
	if cfg.Sync.LogCapacity != 25 {
		t.Errorf("Sync.LogCapacity = %d", cfg.Sync.LogCapacity)
	}
	if cfg.Sync.SampleLimit != 5 {
		t.Errorf("Sync.SampleLimit = %d", cfg.Sync.SampleLimit)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoad_Defaults(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./shelf.db"
remote:
  base_url: "https://books.example.com/api"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.Timeout != 30*time.Second {
		t.Errorf("default Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.Network.ProbeInterval != 5*time.Second {
		t.Errorf("default Network.ProbeInterval = %v", cfg.Network.ProbeInterval)
	}
	if cfg.Network.ProbeAddr == "" {
		t.Error("default Network.ProbeAddr is empty")
	}
	if cfg.Sync.LogCapacity != 50 {
		t.Errorf("default Sync.LogCapacity = %d", cfg.Sync.LogCapacity)
	}
	if cfg.Sync.SampleLimit != 10 {
		t.Errorf("default Sync.SampleLimit = %d", cfg.Sync.SampleLimit)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("SHELFSYNC_TOKEN", "expanded-token")

	configPath := writeConfig(t, `
database:
  path: "./shelf.db"
remote:
  base_url: "https://books.example.com/api"
  auth_token: "${SHELFSYNC_TOKEN}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.AuthToken != "expanded-token" {
		t.Errorf("Remote.AuthToken = %q, want expanded env var", cfg.Remote.AuthToken)
	}
}

func TestLoad_UnsetEnvVarBecomesEmpty(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./shelf.db"
remote:
  base_url: "https://books.example.com/api"
  auth_token: "${SHELFSYNC_DEFINITELY_UNSET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Remote.AuthToken != "" {
		t.Errorf("Remote.AuthToken = %q, want empty", cfg.Remote.AuthToken)
	}
}

func TestLoad_MissingDatabasePath(t *testing.T) {
	configPath := writeConfig(t, `
remote:
  base_url: "https://books.example.com/api"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "database.path") {
		t.Errorf("expected database.path validation error, got %v", err)
	}
}

func TestLoad_MissingBaseURL(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./shelf.db"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "remote.base_url") {
		t.Errorf("expected remote.base_url validation error, got %v", err)
	}
}

func TestLoad_BadDuration(t *testing.T) {
	configPath := writeConfig(t, `
database:
  path: "./shelf.db"
remote:
  base_url: "https://books.example.com/api"
  timeout: "soon"
`)

	_, err := Load(configPath)
	if err == nil || !strings.Contains(err.Error(), "timeout") {
		t.Errorf("expected duration parse error, got %v", err)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for missing file")
	}
}
