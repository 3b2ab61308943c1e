package config

import (
	"fmt"

	"github.com/marmos91/nameserver/pkg/metrics"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// NamespaceMetrics is the collector for the namespace store (never nil, uses noop if disabled)
	NamespaceMetrics metrics.NamespaceMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed metrics labelled with the storage type
//
// If metrics are disabled:
//   - Returns nil server
//   - Returns no-op metrics implementations
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{
			NamespaceMetrics: metrics.NoopNamespaceMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Addr:            fmt.Sprintf(":%d", cfg.Metrics.Port),
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	return &MetricsResult{
		Server:           server,
		NamespaceMetrics: metrics.NewNamespaceMetrics(cfg.Storage.Type),
	}
}
