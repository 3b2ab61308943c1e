package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/nameserver/pkg/gc"
	"github.com/marmos91/nameserver/pkg/idgen"
	"github.com/marmos91/nameserver/pkg/kv/memory"
	"github.com/marmos91/nameserver/pkg/nameserver"
	"github.com/marmos91/nameserver/pkg/store/namespace"
	"github.com/marmos91/nameserver/pkg/topology"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeService records its lifecycle and optionally fails.
type fakeService struct {
	name    string
	failErr error

	mu      sync.Mutex
	served  bool
	stopped bool
	order   *[]string
}

func (f *fakeService) Name() string { return f.name }

func (f *fakeService) Serve(ctx context.Context) error {
	f.mu.Lock()
	f.served = true
	f.mu.Unlock()
	if f.failErr != nil {
		return f.failErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeService) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	if f.order != nil {
		*f.order = append(*f.order, f.name)
	}
	return nil
}

func newNameServer(t *testing.T) (*nameserver.NameServer, *namespace.Store) {
	t.Helper()
	store := namespace.New(memory.New())
	t.Cleanup(func() { _ = store.Close() })

	allocator := topology.NewChunkSegmentAllocator(topology.NewStaticAdmin(1), idgen.NewCounter(0))
	ns, err := nameserver.New(store, idgen.NewCounter(0), allocator, nameserver.Config{
		DefaultChunkSize:   4096,
		DefaultSegmentSize: 4096 * 4,
		Owner:              "test",
	})
	require.NoError(t, err)
	return ns, store
}

func TestAddServiceRejectsDuplicates(t *testing.T) {
	s := New(nil, 0)
	require.NoError(t, s.AddService(&fakeService{name: "a"}))
	assert.Error(t, s.AddService(&fakeService{name: "a"}))
	assert.Len(t, s.Services(), 1)
}

func TestServeStopsAllOnCancel(t *testing.T) {
	ns, _ := newNameServer(t)
	s := New(ns, time.Second)

	var order []string
	a := &fakeService{name: "a", order: &order}
	b := &fakeService{name: "b", order: &order}
	require.NoError(t, s.AddService(a))
	require.NoError(t, s.AddService(b))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	assert.True(t, a.served)
	assert.True(t, b.served)
	assert.Equal(t, []string{"b", "a"}, order)

	assert.Error(t, s.AddService(&fakeService{name: "late"}))
	assert.Error(t, s.Serve(context.Background()))
}

func TestServeReturnsServiceFailure(t *testing.T) {
	s := New(nil, time.Second)
	healthy := &fakeService{name: "healthy"}
	require.NoError(t, s.AddService(healthy))
	require.NoError(t, s.AddService(&fakeService{name: "broken", failErr: errors.New("boom")}))

	err := s.Serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.True(t, healthy.stopped)
}

func TestServeRunsCollector(t *testing.T) {
	ns, store := newNameServer(t)
	ctx := context.Background()

	orphan := &namespace.PageFileSegment{LogicalPoolID: 1, SegmentSize: 4096 * 4, ChunkSize: 4096}
	require.NoError(t, store.PutSegment(ctx, namespace.EncodeSegmentStoreKey(99, 0), orphan))

	collector := gc.NewCollector(store, gc.Config{Enabled: true, Interval: 10 * time.Millisecond})
	s := New(ns, time.Second)
	require.NoError(t, s.AddService(CollectorService{Collector: collector}))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- s.Serve(runCtx) }()

	assert.Eventually(t, func() bool {
		inodes, err := store.SegmentInodes(ctx)
		return err == nil && len(inodes) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
