// Package idgen provides the inode and chunk id generators used by the name
// server. Ids are globally unique and monotonically increasing; the first id
// handed out is initial+1.
package idgen

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/marmos91/nameserver/internal/logger"
	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/marmos91/nameserver/pkg/store/namespace"
)

// InodeIDGenerator hands out inode ids.
type InodeIDGenerator interface {
	GenInodeID(ctx context.Context) (uint64, error)
}

// ChunkIDGenerator hands out chunk ids.
type ChunkIDGenerator interface {
	GenChunkID(ctx context.Context) (uint64, error)
}

// Counter is an in-process generator. Ids are lost on restart, so it suits
// tests and ephemeral setups.
type Counter struct {
	value atomic.Uint64
}

var (
	_ InodeIDGenerator = (*Counter)(nil)
	_ ChunkIDGenerator = (*Counter)(nil)
)

// NewCounter returns a counter whose first id is initial+1.
func NewCounter(initial uint64) *Counter {
	c := &Counter{}
	c.value.Store(initial)
	return c
}

// Next returns the next id.
func (c *Counter) Next() uint64 {
	return c.value.Add(1)
}

// GenInodeID implements InodeIDGenerator.
func (c *Counter) GenInodeID(ctx context.Context) (uint64, error) {
	return c.Next(), nil
}

// GenChunkID implements ChunkIDGenerator.
func (c *Counter) GenChunkID(ctx context.Context) (uint64, error) {
	return c.Next(), nil
}

// KVGenerator persists its high-water mark in a kv.Engine.
//
// Ids are reserved in bundles: the generator writes last+bundleSize once and
// then serves the bundle from memory. A restart resumes after the persisted
// mark, so ids of an unfinished bundle are skipped but never reused.
type KVGenerator struct {
	mu         sync.Mutex
	engine     kv.Engine
	key        []byte
	initial    uint64
	bundleSize uint64

	next  uint64
	limit uint64
}

var (
	_ InodeIDGenerator = (*KVGenerator)(nil)
	_ ChunkIDGenerator = (*KVGenerator)(nil)
)

// NewKVGenerator creates a generator named name. initial applies only when
// nothing has been persisted yet.
func NewKVGenerator(engine kv.Engine, name string, initial, bundleSize uint64) (*KVGenerator, error) {
	if name == "" {
		return nil, errors.New("idgen: generator name is required")
	}
	if bundleSize == 0 {
		return nil, errors.New("idgen: bundle size must be positive")
	}
	return &KVGenerator{
		engine:     engine,
		key:        []byte(namespace.EncodeIDGeneratorKey(name)),
		initial:    initial,
		bundleSize: bundleSize,
	}, nil
}

// Next returns the next id, reserving a new bundle when the current one is used up.
func (g *KVGenerator) Next(ctx context.Context) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.next >= g.limit {
		if err := g.reserve(ctx); err != nil {
			return 0, err
		}
	}

	g.next++
	return g.next, nil
}

func (g *KVGenerator) reserve(ctx context.Context) error {
	var start, limit uint64
	err := g.engine.Update(ctx, func(txn kv.Txn) error {
		start = g.initial
		data, err := txn.Get(g.key)
		switch {
		case errors.Is(err, kv.ErrKeyNotFound):
		case err != nil:
			return err
		case len(data) != 8:
			return fmt.Errorf("corrupt high-water mark: %d bytes", len(data))
		default:
			start = binary.BigEndian.Uint64(data)
		}

		if start > ^uint64(0)-g.bundleSize {
			return errors.New("id space exhausted")
		}
		limit = start + g.bundleSize
		return txn.Set(g.key, binary.BigEndian.AppendUint64(nil, limit))
	})
	if err != nil {
		return fmt.Errorf("idgen %s: failed to reserve ids: %w", g.key, err)
	}

	logger.Debug("idgen %s: reserved ids (%d, %d]", g.key, start, limit)
	g.next, g.limit = start, limit
	return nil
}

// GenInodeID implements InodeIDGenerator.
func (g *KVGenerator) GenInodeID(ctx context.Context) (uint64, error) {
	return g.Next(ctx)
}

// GenChunkID implements ChunkIDGenerator.
func (g *KVGenerator) GenChunkID(ctx context.Context) (uint64, error) {
	return g.Next(ctx)
}
