// Package namespace implements the MDS namespace store: file metadata,
// directory range listing, per-file segment metadata and snapshot records,
// all kept in one flat ordered key space provided by a kv.Engine.
//
// The store is a single synchronous facade. It never translates paths: callers
// build keys with the helpers in keys.go and pass them in. Every operation
// returns nil on success or a *StoreError carrying a StoreStatus.
//
// Two-key mutations (RenameFile, SnapShotFile) are committed as one engine
// batch while holding the store's write lock, so readers observe either the
// state before or the state after, never a mix.
package namespace

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NameServerStorage is the contract of the namespace store.
//
// Keys are opaque ordered strings. Implementations must be safe for
// concurrent use; the context carries tracing information only and does not
// cancel a call in progress.
type NameServerStorage interface {
	// PutFile upserts the record at key, fully replacing any previous one.
	PutFile(ctx context.Context, key string, info *FileInfo) error

	// GetFile returns the record at key, or KeyNotExist.
	GetFile(ctx context.Context, key string) (*FileInfo, error)

	// DeleteFile removes the record at key, or returns KeyNotExist.
	// Deleting a directory does not touch its children.
	DeleteFile(ctx context.Context, key string) error

	// RenameFile atomically removes oldKey and writes newInfo at newKey.
	// It fails with KeyNotExist when oldKey is absent and with
	// KeyAlreadyExist when newKey holds another record.
	RenameFile(ctx context.Context, oldKey string, oldInfo *FileInfo, newKey string, newInfo *FileInfo) error

	// ListFile returns every file record in [startKey, endKey) in key order.
	ListFile(ctx context.Context, startKey, endKey string) ([]*FileInfo, error)

	// ListSnapshotFile is ListFile for snapshot ranges.
	ListSnapshotFile(ctx context.Context, startKey, endKey string) ([]*FileInfo, error)

	// LoadSnapShotFile returns every record under the snapshot prefix.
	LoadSnapShotFile(ctx context.Context) ([]*FileInfo, error)

	// GetSegment returns the segment at key, or KeyNotExist.
	GetSegment(ctx context.Context, key string) (*PageFileSegment, error)

	// PutSegment upserts the segment at key.
	PutSegment(ctx context.Context, key string, segment *PageFileSegment) error

	// DeleteSegment removes the segment at key, or returns KeyNotExist.
	DeleteSegment(ctx context.Context, key string) error

	// ListSegment returns the segments of inodeID in offset order.
	ListSegment(ctx context.Context, inodeID InodeID) ([]*PageFileSegment, error)

	// SnapShotFile atomically overwrites originalKey with originalInfo and
	// inserts snapshotInfo at snapshotKey.
	SnapShotFile(ctx context.Context, originalKey string, originalInfo *FileInfo, snapshotKey string, snapshotInfo *FileInfo) error
}

// Store is the kv.Engine-backed NameServerStorage.
//
// Thread Safety:
// Every operation runs under mu. Reads share the lock, writes hold it
// exclusively for their whole engine batch.
type Store struct {
	mu      sync.RWMutex
	engine  kv.Engine
	metrics metrics.NamespaceMetrics
	tracer  trace.Tracer
}

var _ NameServerStorage = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithMetrics sets the metrics sink. A nil value keeps the no-op sink.
func WithMetrics(m metrics.NamespaceMetrics) Option {
	return func(s *Store) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer used to open one span per operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Store) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// New creates a Store over engine. The store takes ownership of the engine
// and closes it in Close.
func New(engine kv.Engine, opts ...Option) *Store {
	s := &Store{
		engine:  engine,
		metrics: metrics.NoopNamespaceMetrics(),
		tracer:  noop.NewTracerProvider().Tracer("namespace"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close closes the underlying engine.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Close()
}

// operation tracks one store call for tracing and metrics.
type operation struct {
	store *Store
	name  string
	key   string
	start time.Time
	span  trace.Span
}

func (s *Store) begin(ctx context.Context, name, key string) *operation {
	_, span := s.tracer.Start(ctx, "namespace."+name,
		trace.WithAttributes(attribute.String("namespace.key", key)))
	return &operation{store: s, name: name, key: key, start: time.Now(), span: span}
}

// end records err's status and returns err unchanged. InternalError and
// StorageFatalError are logged here so no caller has to.
func (op *operation) end(err error) error {
	status := StatusOf(err)
	op.store.metrics.RecordOperation(op.name, time.Since(op.start), status.String())
	op.span.SetAttributes(attribute.String("namespace.status", status.String()))

	switch status {
	case InternalError, StorageFatalError:
		logger.Error("namespace %s failed: %v", op.name, err)
		op.span.RecordError(err)
		op.span.SetStatus(codes.Error, status.String())
	}

	op.span.End()
	return err
}

// scanned records the size of a range result.
func (op *operation) scanned(records int) {
	op.store.metrics.RecordScanSize(op.name, records)
	op.span.SetAttributes(attribute.Int("namespace.records", records))
}

// engineError classifies an error returned by the engine. Store errors
// raised inside a transaction pass through unchanged; a write conflict is an
// invariant violation since the store serialises its writers; anything else
// is fatal.
func engineError(key []byte, err error) error {
	if err == nil {
		return nil
	}
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr
	}
	if errors.Is(err, kv.ErrKeyNotFound) {
		return newError(KeyNotExist, key, nil)
	}
	if errors.Is(err, kv.ErrConflict) {
		return newError(InternalError, key, err)
	}
	return newError(StorageFatalError, key, err)
}
