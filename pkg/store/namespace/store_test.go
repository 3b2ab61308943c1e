package namespace_test

import (
	"context"
	"testing"

	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/kv/badger"
	"github.com/marmos91/nameserver/pkg/kv/memory"
	"github.com/marmos91/nameserver/pkg/store/namespace"
	nstesting "github.com/marmos91/nameserver/pkg/store/namespace/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newStore(t *testing.T, engine kv.Engine, opts ...namespace.Option) *namespace.Store {
	t.Helper()
	store := namespace.New(engine, opts...)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestMemoryStore(t *testing.T) {
	suite := &nstesting.StoreTestSuite{
		NewStore: func(t *testing.T) namespace.NameServerStorage {
			return newStore(t, memory.New())
		},
	}
	suite.Run(t)
}

func TestBadgerStore(t *testing.T) {
	suite := &nstesting.StoreTestSuite{
		NewStore: func(t *testing.T) namespace.NameServerStorage {
			engine, err := badger.Open(badger.Config{DBPath: t.TempDir()})
			require.NoError(t, err)
			return newStore(t, engine)
		},
	}
	suite.Run(t)
}

func TestCorruptRecordIsInternalError(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()
	store := newStore(t, engine)

	// field 1 announced as varint but truncated
	require.NoError(t, engine.Update(ctx, func(txn kv.Txn) error {
		return txn.Set([]byte("bad"), []byte{0x08, 0xff})
	}))
	require.NoError(t, store.PutFile(ctx, "good", &namespace.FileInfo{ID: 1}))

	_, err := store.GetFile(ctx, "bad")
	assert.Equal(t, namespace.InternalError, namespace.StatusOf(err))
	assert.ErrorIs(t, err, namespace.ErrInternal)

	_, err = store.ListFile(ctx, "a", "z")
	assert.Equal(t, namespace.InternalError, namespace.StatusOf(err))

	_, err = store.GetSegment(ctx, "bad")
	assert.Equal(t, namespace.InternalError, namespace.StatusOf(err))
}

func TestClosedEngineIsFatal(t *testing.T) {
	ctx := context.Background()
	engine := memory.New()
	store := namespace.New(engine)
	require.NoError(t, engine.Close())

	err := store.PutFile(ctx, "k", &namespace.FileInfo{})
	assert.Equal(t, namespace.StorageFatalError, namespace.StatusOf(err))
	assert.ErrorIs(t, err, memory.ErrClosed)

	_, err = store.LoadSnapShotFile(ctx)
	assert.Equal(t, namespace.StorageFatalError, namespace.StatusOf(err))
}

func TestOperationsAreTraced(t *testing.T) {
	ctx := context.Background()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	store := newStore(t, memory.New(), namespace.WithTracer(provider.Tracer("test")))

	require.NoError(t, store.PutFile(ctx, "k", &namespace.FileInfo{}))
	_, err := store.GetFile(ctx, "missing")
	require.Error(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "namespace.PutFile", spans[0].Name())
	assert.Equal(t, "namespace.GetFile", spans[1].Name())

	var statusAttr string
	for _, attr := range spans[1].Attributes() {
		if attr.Key == "namespace.status" {
			statusAttr = attr.Value.AsString()
		}
	}
	assert.Equal(t, "KeyNotExist", statusAttr)
}
