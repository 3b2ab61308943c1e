package config

import (
	"strings"
	"testing"
)

func TestValidate_ValidConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if err := Validate(cfg); err != nil {
		t.Errorf("Expected valid config to pass validation, got error: %v", err)
	}
}

func TestValidate_InvalidLogLevel(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "INVALID"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid log level")
	}
	if !strings.Contains(err.Error(), "oneof") {
		t.Errorf("Expected 'oneof' validation error, got: %v", err)
	}
}

func TestValidate_InvalidLogFormat(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Format = "xml"

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for invalid log format")
	}
}

func TestValidate_InvalidStorageType(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Storage.Type = "etcd"

	err := Validate(cfg)
	if err == nil {
		t.Fatal("Expected validation error for invalid storage type")
	}
	if !strings.Contains(err.Error(), "Storage.Type") {
		t.Errorf("Expected error to name Storage.Type, got: %v", err)
	}
}

func TestValidate_ZeroShutdownTimeout(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Server.ShutdownTimeout = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero shutdown timeout")
	}
}

func TestValidate_Geometry(t *testing.T) {
	tests := []struct {
		name    string
		chunk   uint32
		segment uint32
		wantErr bool
	}{
		{"multiple", 4096, 4096 * 16, false},
		{"equal", 4096, 4096, false},
		{"not a multiple", 4096, 4096*16 + 1, true},
		{"zero chunk", 0, 4096, true},
		{"zero segment", 4096, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Namespace.DefaultChunkSize = tt.chunk
			cfg.Namespace.DefaultSegmentSize = tt.segment

			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_ZeroBundleSize(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.IDGen.BundleSize = 0

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for zero bundle size")
	}
}

func TestValidate_MetricsPortRange(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Metrics.Port = 70000

	if err := Validate(cfg); err == nil {
		t.Fatal("Expected validation error for out of range metrics port")
	}
}

func TestValidate_BadgerOptions(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
		wantErr string
	}{
		{"valid", map[string]any{"db_path": "/data", "compression": "snappy", "gc_interval": "5m"}, ""},
		{"in memory without path", map[string]any{"in_memory": true}, ""},
		{"missing path", map[string]any{"compression": "none"}, "db_path"},
		{"unknown compression", map[string]any{"db_path": "/data", "compression": "lz4"}, "compression"},
		{"bad discard ratio", map[string]any{"db_path": "/data", "gc_discard_ratio": 1.5}, "gc_discard_ratio"},
		{"unknown option", map[string]any{"db_path": "/data", "cache_ttl": "1m"}, "cache_ttl"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			cfg.Storage.Type = "badger"
			cfg.Storage.Badger = tt.options

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Expected no error, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error mentioning %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error mentioning %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
