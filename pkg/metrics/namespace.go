package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// NamespaceMetrics provides observability for namespace store operations.
//
// This interface is optional - if not provided to the namespace store,
// operations proceed without metrics collection.
//
// Example usage:
//
//	// With metrics enabled
//	m := metrics.NewNamespaceMetrics("badger")
//	store := namespace.New(engine, namespace.WithMetrics(m))
//
//	// Without metrics (no-op)
//	store := namespace.New(engine)
type NamespaceMetrics interface {
	// RecordOperation records a completed store operation.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "PutFile", "RenameFile", "ListFile")
	//   - duration: Time taken to complete the operation
	//   - status: Outcome label (e.g., "OK", "KeyNotExist")
	RecordOperation(operation string, duration time.Duration, status string)

	// RecordScanSize records how many records a range operation returned.
	//
	// Parameters:
	//   - operation: Operation name (e.g., "ListFile", "LoadSnapShotFile")
	//   - records: Number of decoded records returned to the caller
	RecordScanSize(operation string, records int)
}

// namespaceCollectors are registered once per registry; every
// NamespaceMetrics instance shares them and differs only by backend label.
type namespaceCollectors struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	scanRecords       *prometheus.HistogramVec
}

var (
	collectors     *namespaceCollectors
	collectorsOnce sync.Once
)

func getCollectors(reg *prometheus.Registry) *namespaceCollectors {
	collectorsOnce.Do(func() {
		collectors = &namespaceCollectors{
			operationsTotal: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "nameserver_namespace_operations_total",
					Help: "Total number of namespace store operations by backend, operation, and status",
				},
				[]string{"backend", "operation", "status"},
			),
			operationDuration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "nameserver_namespace_operation_duration_seconds",
					Help: "Duration of namespace store operations in seconds",
					Buckets: []float64{
						0.00001, // 10µs
						0.0001,  // 100µs
						0.0005,  // 500µs
						0.001,   // 1ms
						0.005,   // 5ms
						0.01,    // 10ms
						0.05,    // 50ms
						0.1,     // 100ms
						0.5,     // 500ms
					},
				},
				[]string{"backend", "operation"},
			),
			scanRecords: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "nameserver_namespace_scan_records",
					Help:    "Number of records returned by namespace range operations",
					Buckets: prometheus.ExponentialBuckets(1, 4, 8),
				},
				[]string{"backend", "operation"},
			),
		}
	})
	return collectors
}

// NewNamespaceMetrics creates a Prometheus-backed NamespaceMetrics instance.
//
// Parameters:
//   - backend: Engine behind the store (e.g., "memory", "badger"), used as a label
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewNamespaceMetrics(backend string) NamespaceMetrics {
	if !IsEnabled() {
		return NoopNamespaceMetrics()
	}

	return &namespaceMetrics{
		backend:    backend,
		collectors: getCollectors(GetRegistry()),
	}
}

// NoopNamespaceMetrics returns a NamespaceMetrics that discards everything.
func NoopNamespaceMetrics() NamespaceMetrics {
	return noopNamespaceMetrics{}
}

type namespaceMetrics struct {
	backend    string
	collectors *namespaceCollectors
}

func (m *namespaceMetrics) RecordOperation(operation string, duration time.Duration, status string) {
	m.collectors.operationsTotal.WithLabelValues(m.backend, operation, status).Inc()
	m.collectors.operationDuration.WithLabelValues(m.backend, operation).Observe(duration.Seconds())
}

func (m *namespaceMetrics) RecordScanSize(operation string, records int) {
	m.collectors.scanRecords.WithLabelValues(m.backend, operation).Observe(float64(records))
}

type noopNamespaceMetrics struct{}

func (noopNamespaceMetrics) RecordOperation(operation string, duration time.Duration, status string) {
}
func (noopNamespaceMetrics) RecordScanSize(operation string, records int) {}
