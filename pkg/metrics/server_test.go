package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServerHealthAndMetrics(t *testing.T) {
	InitRegistry()
	NewNamespaceMetrics("memory").RecordOperation("PutFile", time.Millisecond, "OK")

	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0"})
	var healthy atomic.Bool
	healthy.Store(true)
	srv.AddHealthCheck("engine", func(context.Context) error {
		if healthy.Load() {
			return nil
		}
		return errors.New("closed")
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + srv.Addr()

	code, body := get(t, base+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	healthy.Store(false)
	code, body = get(t, base+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, "engine: closed")

	code, body = get(t, base+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "nameserver_namespace_operations_total")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.NoError(t, srv.Stop(context.Background()))
}

func TestServerListenError(t *testing.T) {
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:-1"})
	assert.Error(t, srv.Start(context.Background()))
}
