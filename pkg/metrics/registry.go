// Package metrics collects Prometheus metrics for the name server.
//
// Collection is off until InitRegistry is called; before that every
// constructor hands out a no-op implementation, so components never check
// whether metrics are enabled.
//
//	metrics.InitRegistry()
//	store := namespace.New(engine, namespace.WithMetrics(metrics.NewNamespaceMetrics("badger")))
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry. Later calls are no-ops.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the registry, or nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
