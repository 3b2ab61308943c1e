package config

import (
	"strings"
	"time"
)

const (
	// DefaultChunkSize is 16 MiB.
	DefaultChunkSize uint32 = 16 << 20

	// DefaultSegmentSize is 1 GiB.
	DefaultSegmentSize uint32 = 1 << 30

	// DefaultMetricsPort is the port of the /metrics endpoint.
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Engine-specific defaults are handled by the engine itself
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyStorageDefaults(&cfg.Storage)
	applyNamespaceDefaults(&cfg.Namespace)
	applyIDGenDefaults(&cfg.IDGen)
	applyMetricsDefaults(&cfg.Metrics)
	applyGCDefaults(&cfg.GC)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyStorageDefaults(cfg *StorageConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	cfg.Type = strings.ToLower(cfg.Type)

	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/nameserver/badger"
	}
	if _, ok := cfg.Badger["sync_writes"]; !ok {
		cfg.Badger["sync_writes"] = true
	}
}

func applyNamespaceDefaults(cfg *NamespaceConfig) {
	if cfg.DefaultChunkSize == 0 {
		cfg.DefaultChunkSize = DefaultChunkSize
	}
	if cfg.DefaultSegmentSize == 0 {
		cfg.DefaultSegmentSize = DefaultSegmentSize
	}
	if cfg.Owner == "" {
		cfg.Owner = "root"
	}
}

func applyIDGenDefaults(cfg *IDGenConfig) {
	if cfg.BundleSize == 0 {
		cfg.BundleSize = 1000
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

func applyGCDefaults(cfg *GCConfig) {
	if cfg.Interval == 0 {
		cfg.Interval = time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Storage: StorageConfig{
			Badger: make(map[string]any),
		},
		IDGen: IDGenConfig{
			Persistent: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
