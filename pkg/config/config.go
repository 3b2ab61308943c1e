package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete name server configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (NAMESERVER_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Storage engines follow the same pattern as the rest of the stack: the
// Storage section names an engine type and carries an option map for it,
// decoded by the engine factory.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Storage selects the key-value engine backing the namespace
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`

	// Namespace holds the geometry applied to new files
	Namespace NamespaceConfig `mapstructure:"namespace" yaml:"namespace"`

	// IDGen configures the inode and chunk id generators
	IDGen IDGenConfig `mapstructure:"idgen" yaml:"idgen"`

	// Topology configures segment placement
	Topology TopologyConfig `mapstructure:"topology" yaml:"topology"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// GC configures the orphaned segment collector run by serve
	GC GCConfig `mapstructure:"gc" yaml:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" yaml:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" yaml:"output" validate:"required"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"required,gt=0"`
}

// StorageConfig specifies the key-value engine.
//
// The Type field determines which engine is used. Only the matching
// option map is read.
type StorageConfig struct {
	// Type is the engine: memory or badger
	Type string `mapstructure:"type" yaml:"type" validate:"required,oneof=memory badger"`

	// Badger holds BadgerDB options (db_path, in_memory, sync_writes,
	// compression, block_cache_size_mb, index_cache_size_mb, gc_interval,
	// gc_discard_ratio)
	Badger map[string]any `mapstructure:"badger" yaml:"badger"`
}

// NamespaceConfig holds the geometry and ownership of new files.
type NamespaceConfig struct {
	// DefaultChunkSize is the chunk size of new page files in bytes
	DefaultChunkSize uint32 `mapstructure:"default_chunk_size" yaml:"default_chunk_size" validate:"required,gt=0"`

	// DefaultSegmentSize is the segment size of new page files in bytes
	DefaultSegmentSize uint32 `mapstructure:"default_segment_size" yaml:"default_segment_size" validate:"required,gt=0"`

	// Owner is recorded on every entry created through the CLI
	Owner string `mapstructure:"owner" yaml:"owner" validate:"required"`
}

// IDGenConfig configures the id generators.
type IDGenConfig struct {
	// InodeInitial is the last inode id considered used; the first new
	// inode gets InodeInitial+1
	InodeInitial uint64 `mapstructure:"inode_initial" yaml:"inode_initial"`

	// ChunkInitial is the last chunk id considered used
	ChunkInitial uint64 `mapstructure:"chunk_initial" yaml:"chunk_initial"`

	// BundleSize is how many ids a persistent generator reserves per write
	BundleSize uint64 `mapstructure:"bundle_size" yaml:"bundle_size" validate:"required,gt=0"`

	// Persistent stores the generator high-water marks in the engine so
	// ids survive restarts
	Persistent bool `mapstructure:"persistent" yaml:"persistent"`
}

// TopologyConfig configures segment placement.
type TopologyConfig struct {
	// LogicalPoolID is the pool every new segment is placed in
	LogicalPoolID uint32 `mapstructure:"logical_pool_id" yaml:"logical_pool_id"`
}

// MetricsConfig configures Prometheus metrics exposure.
type MetricsConfig struct {
	// Enabled turns on metrics collection and the HTTP endpoint
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port is the HTTP port for the /metrics endpoint
	Port int `mapstructure:"port" yaml:"port" validate:"omitempty,min=1,max=65535"`
}

// GCConfig configures the orphaned segment collector.
type GCConfig struct {
	// Enabled runs the collector in the background
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Interval is the time between two runs
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"required,gt=0"`

	// BatchSize is how many orphaned inodes are reclaimed between
	// cancellation checks
	BatchSize int `mapstructure:"batch_size" yaml:"batch_size" validate:"required,gt=0"`

	// DryRun only logs what would be deleted
	DryRun bool `mapstructure:"dry_run" yaml:"dry_run"`

	// DeleteRate caps segment deletions per second (0 = unlimited)
	DeleteRate uint `mapstructure:"delete_rate" yaml:"delete_rate"`
}

// Load loads configuration from file, environment variables, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Example: NAMESERVER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("NAMESERVER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans that default to true cannot be told apart from an explicit
	// false after unmarshalling, so they are registered with viper instead.
	v.SetDefault("idgen.persistent", true)

	// Scalar keys must be known to viper for AutomaticEnv to reach them.
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"server.shutdown_timeout",
		"storage.type",
		"namespace.default_chunk_size", "namespace.default_segment_size", "namespace.owner",
		"idgen.inode_initial", "idgen.chunk_initial", "idgen.bundle_size",
		"topology.logical_pool_id",
		"metrics.enabled", "metrics.port",
		"gc.enabled", "gc.interval", "gc.batch_size", "gc.dry_run", "gc.delete_rate",
	} {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/nameserver/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		// A missing file means defaults and environment only.
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		if configPath != "" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nameserver")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "nameserver")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
