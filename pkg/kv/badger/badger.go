// Package badger implements kv.Engine on top of BadgerDB.
//
// BadgerDB is an embedded LSM key-value store with serialisable snapshot
// isolation. Each kv.Engine.Update maps onto a single badger read-write
// transaction, which commits its writes atomically; each View maps onto a
// read-only transaction pinned to one snapshot.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/kv"
)

// Config configures a BadgerDB engine.
type Config struct {
	// DBPath is the directory where BadgerDB keeps its files. Ignored when
	// InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk (tests, scratch setups).
	InMemory bool `mapstructure:"in_memory"`

	// SyncWrites fsyncs every commit. Namespace metadata is small and
	// losing an acknowledged rename is worse than the extra latency.
	SyncWrites bool `mapstructure:"sync_writes"`

	// Compression is one of "none", "snappy", "zstd" (default "none").
	Compression string `mapstructure:"compression"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`

	// GCInterval is how often RunGCLoop triggers value-log GC (default: 10m).
	GCInterval time.Duration `mapstructure:"gc_interval"`

	// GCDiscardRatio is passed to RunValueLogGC (default: 0.5).
	GCDiscardRatio float64 `mapstructure:"gc_discard_ratio"`
}

func (c *Config) applyDefaults() {
	if c.Compression == "" {
		c.Compression = "none"
	}
	if c.BlockCacheSizeMB == 0 {
		c.BlockCacheSizeMB = 64
	}
	if c.IndexCacheSizeMB == 0 {
		c.IndexCacheSizeMB = 32
	}
	if c.GCInterval == 0 {
		c.GCInterval = 10 * time.Minute
	}
	if c.GCDiscardRatio == 0 {
		c.GCDiscardRatio = 0.5
	}
}

// Engine is a BadgerDB-backed kv.Engine.
type Engine struct {
	db     *badger.DB
	config Config
}

var _ kv.Engine = (*Engine)(nil)

// ParseCompression maps a configuration string to a badger compression type.
func ParseCompression(name string) (options.CompressionType, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return options.None, nil
	case "snappy":
		return options.Snappy, nil
	case "zstd":
		return options.ZSTD, nil
	default:
		return options.None, fmt.Errorf("unknown compression %q", name)
	}
}

// Open opens (creating if needed) a BadgerDB engine.
func Open(config Config) (*Engine, error) {
	config.applyDefaults()

	if !config.InMemory && config.DBPath == "" {
		return nil, fmt.Errorf("badger engine: db_path is required unless in_memory is set")
	}

	compression, err := ParseCompression(config.Compression)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(config.DBPath)
	if config.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts = opts.
		WithLogger(logger.Badger()).
		WithLoggingLevel(badger.WARNING).
		WithSyncWrites(config.SyncWrites).
		WithCompression(compression).
		WithBlockCacheSize(config.BlockCacheSizeMB << 20).
		WithIndexCacheSize(config.IndexCacheSizeMB << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	logger.Debug("badger engine opened: path=%s in_memory=%t compression=%s",
		config.DBPath, config.InMemory, config.Compression)

	return &Engine{db: db, config: config}, nil
}

// View implements kv.Engine.
func (e *Engine) View(ctx context.Context, fn func(txn kv.Txn) error) error {
	return e.db.View(func(t *badger.Txn) error {
		return fn(&txn{txn: t})
	})
}

// Update implements kv.Engine.
//
// badger.ErrConflict is reported as kv.ErrConflict; callers serialising
// their writes never see it.
func (e *Engine) Update(ctx context.Context, fn func(txn kv.Txn) error) error {
	err := e.db.Update(func(t *badger.Txn) error {
		return fn(&txn{txn: t})
	})
	if errors.Is(err, badger.ErrConflict) {
		return fmt.Errorf("%w: %v", kv.ErrConflict, err)
	}
	return err
}

// Close implements kv.Engine.
func (e *Engine) Close() error {
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

// RunGC runs value-log garbage collection until badger reports nothing
// left to rewrite.
func (e *Engine) RunGC() error {
	for {
		err := e.db.RunValueLogGC(e.config.GCDiscardRatio)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// RunGCLoop calls RunGC every GCInterval until ctx is cancelled.
// In-memory engines have no value log and return immediately.
func (e *Engine) RunGCLoop(ctx context.Context) {
	if e.config.InMemory {
		return
	}

	ticker := time.NewTicker(e.config.GCInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.RunGC(); err != nil {
				logger.Warn("badger value log GC failed: %v", err)
			}
		}
	}
}

type txn struct {
	txn *badger.Txn
}

func (t *txn) Get(key []byte) ([]byte, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (t *txn) Set(key, value []byte) error {
	return t.txn.Set(bytes.Clone(key), bytes.Clone(value))
}

func (t *txn) Delete(key []byte) error {
	return t.txn.Delete(bytes.Clone(key))
}

func (t *txn) Iterate(start, end []byte, fn func(key, value []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true

	it := t.txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(start); it.Valid(); it.Next() {
		item := it.Item()
		if end != nil && bytes.Compare(item.Key(), end) >= 0 {
			break
		}

		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(item.KeyCopy(nil), value); err != nil {
			if errors.Is(err, kv.ErrStopIteration) {
				return nil
			}
			return err
		}
	}

	return nil
}
