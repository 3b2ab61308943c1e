package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return configPath
}

func TestLoad_DefaultConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "info"

storage:
  type: "memory"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected normalized level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown_timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Namespace.DefaultChunkSize != DefaultChunkSize {
		t.Errorf("Expected default chunk size %d, got %d", DefaultChunkSize, cfg.Namespace.DefaultChunkSize)
	}
	if !cfg.IDGen.Persistent {
		t.Error("Expected persistent id generators by default")
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	nonExistentPath := filepath.Join(t.TempDir(), "nonexistent.yaml")

	cfg, err := Load(nonExistentPath)
	if err != nil {
		t.Fatalf("Expected no error with missing config file, got: %v", err)
	}

	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type 'memory', got %q", cfg.Storage.Type)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected default metrics port %d, got %d", DefaultMetricsPort, cfg.Metrics.Port)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "logging:\n  level: [unterminated\n")

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for invalid YAML")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "DEBUG"
  format: "json"
  output: "stderr"

server:
  shutdown_timeout: 5s

storage:
  type: "badger"
  badger:
    db_path: "/var/lib/nameserver"
    compression: "zstd"
    gc_interval: 1m

namespace:
  default_chunk_size: 4194304
  default_segment_size: 67108864
  owner: "curve"

idgen:
  inode_initial: 100
  chunk_initial: 200
  bundle_size: 50
  persistent: false

topology:
  logical_pool_id: 3

metrics:
  enabled: true
  port: 9100
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Format != "json" || cfg.Logging.Output != "stderr" {
		t.Errorf("Unexpected logging config: %+v", cfg.Logging)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected shutdown_timeout 5s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Storage.Type != "badger" {
		t.Errorf("Expected storage type 'badger', got %q", cfg.Storage.Type)
	}
	if cfg.Storage.Badger["db_path"] != "/var/lib/nameserver" {
		t.Errorf("Expected db_path '/var/lib/nameserver', got %v", cfg.Storage.Badger["db_path"])
	}
	if cfg.Namespace.DefaultSegmentSize != 64<<20 {
		t.Errorf("Expected segment size 64MiB, got %d", cfg.Namespace.DefaultSegmentSize)
	}
	if cfg.Namespace.Owner != "curve" {
		t.Errorf("Expected owner 'curve', got %q", cfg.Namespace.Owner)
	}
	if cfg.IDGen.Persistent {
		t.Error("Expected explicit persistent: false to be kept")
	}
	if cfg.IDGen.InodeInitial != 100 || cfg.IDGen.ChunkInitial != 200 || cfg.IDGen.BundleSize != 50 {
		t.Errorf("Unexpected idgen config: %+v", cfg.IDGen)
	}
	if cfg.Topology.LogicalPoolID != 3 {
		t.Errorf("Expected logical pool 3, got %d", cfg.Topology.LogicalPoolID)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Port != 9100 {
		t.Errorf("Unexpected metrics config: %+v", cfg.Metrics)
	}
}

func TestLoad_EnvironmentOverride(t *testing.T) {
	configPath := writeConfig(t, `
logging:
  level: "INFO"
`)

	t.Setenv("NAMESERVER_LOGGING_LEVEL", "warn")
	t.Setenv("NAMESERVER_NAMESPACE_OWNER", "ops")
	t.Setenv("NAMESERVER_TOPOLOGY_LOGICAL_POOL_ID", "7")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "WARN" {
		t.Errorf("Expected env level 'WARN', got %q", cfg.Logging.Level)
	}
	if cfg.Namespace.Owner != "ops" {
		t.Errorf("Expected env owner 'ops', got %q", cfg.Namespace.Owner)
	}
	if cfg.Topology.LogicalPoolID != 7 {
		t.Errorf("Expected env logical pool 7, got %d", cfg.Topology.LogicalPoolID)
	}
}

func TestLoad_RejectsBadGeometry(t *testing.T) {
	configPath := writeConfig(t, `
namespace:
  default_chunk_size: 3000
  default_segment_size: 10000
`)

	if _, err := Load(configPath); err == nil {
		t.Fatal("Expected error for segment size that is not a multiple of chunk size")
	}
}

func TestGetConfigDir_XDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	if got := GetConfigDir(); got != filepath.Join(dir, "nameserver") {
		t.Errorf("Expected config dir under XDG_CONFIG_HOME, got %q", got)
	}
	if got := GetDefaultConfigPath(); got != filepath.Join(dir, "nameserver", "config.yaml") {
		t.Errorf("Unexpected default config path %q", got)
	}
	if ConfigExists() {
		t.Error("Expected no config in a fresh XDG directory")
	}
}
