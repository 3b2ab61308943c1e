package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_Server(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.Server.ShutdownTimeout)
	}
}

func TestApplyDefaults_Storage(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Storage.Type != "memory" {
		t.Errorf("Expected default storage type 'memory', got %q", cfg.Storage.Type)
	}
	if cfg.Storage.Badger == nil {
		t.Fatal("Expected Badger map to be initialized")
	}
	if path, ok := cfg.Storage.Badger["db_path"]; !ok || path != "/tmp/nameserver/badger" {
		t.Errorf("Expected default db_path '/tmp/nameserver/badger', got %v", path)
	}
}

func TestApplyDefaults_StorageTypeNormalized(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Type: "Badger"}}
	ApplyDefaults(cfg)

	if cfg.Storage.Type != "badger" {
		t.Errorf("Expected storage type normalized to 'badger', got %q", cfg.Storage.Type)
	}
}

func TestApplyDefaults_Namespace(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Namespace.DefaultChunkSize != 16<<20 {
		t.Errorf("Expected default chunk size 16MiB, got %d", cfg.Namespace.DefaultChunkSize)
	}
	if cfg.Namespace.DefaultSegmentSize != 1<<30 {
		t.Errorf("Expected default segment size 1GiB, got %d", cfg.Namespace.DefaultSegmentSize)
	}
	if cfg.Namespace.Owner != "root" {
		t.Errorf("Expected default owner 'root', got %q", cfg.Namespace.Owner)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging:   LoggingConfig{Level: "debug", Format: "json"},
		Namespace: NamespaceConfig{DefaultChunkSize: 4096, Owner: "alice"},
		IDGen:     IDGenConfig{BundleSize: 7},
		Metrics:   MetricsConfig{Port: 9200},
		Storage: StorageConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": "/data/ns", "sync_writes": false},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected format 'json' to be kept, got %q", cfg.Logging.Format)
	}
	if cfg.Namespace.DefaultChunkSize != 4096 || cfg.Namespace.Owner != "alice" {
		t.Errorf("Expected explicit namespace values to be kept, got %+v", cfg.Namespace)
	}
	if cfg.IDGen.BundleSize != 7 {
		t.Errorf("Expected bundle size 7, got %d", cfg.IDGen.BundleSize)
	}
	if cfg.Metrics.Port != 9200 {
		t.Errorf("Expected metrics port 9200, got %d", cfg.Metrics.Port)
	}
	if cfg.Storage.Badger["db_path"] != "/data/ns" || cfg.Storage.Badger["sync_writes"] != false {
		t.Errorf("Expected explicit badger options to be kept, got %v", cfg.Storage.Badger)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if !cfg.IDGen.Persistent {
		t.Error("Expected persistent id generators in the default config")
	}
	if cfg.IDGen.BundleSize != 1000 {
		t.Errorf("Expected default bundle size 1000, got %d", cfg.IDGen.BundleSize)
	}
	if cfg.Metrics.Enabled {
		t.Error("Expected metrics to be disabled by default")
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Expected default config to be valid, got: %v", err)
	}
}
