package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopWhenDisabled(t *testing.T) {
	if IsEnabled() {
		t.Skip("registry already initialized by another test")
	}
	m := NewNamespaceMetrics("memory")
	assert.IsType(t, noopNamespaceMetrics{}, m)
	m.RecordOperation("PutFile", time.Millisecond, "OK")
	m.RecordScanSize("ListFile", 3)
}

func TestNamespaceMetricsRecords(t *testing.T) {
	InitRegistry()
	require.True(t, IsEnabled())

	memory := NewNamespaceMetrics("memory")
	badger := NewNamespaceMetrics("badger")

	memory.RecordOperation("GetFile", time.Millisecond, "OK")
	memory.RecordOperation("GetFile", time.Millisecond, "OK")
	badger.RecordOperation("GetFile", time.Millisecond, "KeyNotExist")
	memory.RecordScanSize("ListFile", 10)

	families, err := GetRegistry().Gather()
	require.NoError(t, err)

	counts := map[string]float64{}
	for _, family := range families {
		if family.GetName() != "nameserver_namespace_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range metric.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			counts[labels["backend"]+"/"+labels["status"]] = metric.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 2.0, counts["memory/OK"])
	assert.Equal(t, 1.0, counts["badger/KeyNotExist"])
}
