// Package memory implements kv.Engine over an in-memory ordered B-tree.
//
// All data lives in process memory and is lost when the engine is closed.
// Writers are serialised by a single lock; every Update works on a
// copy-on-write clone of the tree which replaces the live tree only when the
// transaction function succeeds, so a failed Update leaves no trace and
// readers never observe a partially applied batch.
package memory

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"github.com/google/btree"
	"github.com/marmos91/nameserver/pkg/kv"
)

// degree of the underlying B-tree. 32 keeps nodes around a cache line
// multiple for short metadata keys.
const degree = 32

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("memory engine: closed")

// errReadOnly is returned when a write is attempted inside View.
var errReadOnly = errors.New("memory engine: write in read-only transaction")

type item struct {
	key   []byte
	value []byte
}

func less(a, b item) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// Engine is an in-memory kv.Engine.
type Engine struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[item]
	closed bool
}

var _ kv.Engine = (*Engine)(nil)

// New creates an empty in-memory engine.
func New() *Engine {
	return &Engine{tree: btree.NewG[item](degree, less)}
}

// View implements kv.Engine.
func (e *Engine) View(ctx context.Context, fn func(txn kv.Txn) error) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrClosed
	}

	return fn(&txn{tree: e.tree, writable: false})
}

// Update implements kv.Engine.
func (e *Engine) Update(ctx context.Context, fn func(txn kv.Txn) error) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	staged := e.tree.Clone()
	if err := fn(&txn{tree: staged, writable: true}); err != nil {
		return err
	}

	e.tree = staged
	return nil
}

// Close implements kv.Engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	e.tree.Clear(false)
	return nil
}

// Len returns the number of keys currently stored.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.tree.Len()
}

type txn struct {
	tree     *btree.BTreeG[item]
	writable bool
}

func (t *txn) Get(key []byte) ([]byte, error) {
	found, ok := t.tree.Get(item{key: key})
	if !ok {
		return nil, kv.ErrKeyNotFound
	}
	return bytes.Clone(found.value), nil
}

func (t *txn) Set(key, value []byte) error {
	if !t.writable {
		return errReadOnly
	}
	t.tree.ReplaceOrInsert(item{key: bytes.Clone(key), value: bytes.Clone(value)})
	return nil
}

func (t *txn) Delete(key []byte) error {
	if !t.writable {
		return errReadOnly
	}
	t.tree.Delete(item{key: key})
	return nil
}

func (t *txn) Iterate(start, end []byte, fn func(key, value []byte) error) error {
	var iterErr error
	visit := func(it item) bool {
		if err := fn(bytes.Clone(it.key), bytes.Clone(it.value)); err != nil {
			iterErr = err
			return false
		}
		return true
	}

	if end == nil {
		t.tree.AscendGreaterOrEqual(item{key: start}, visit)
	} else {
		if bytes.Compare(start, end) >= 0 {
			return nil
		}
		t.tree.AscendRange(item{key: start}, item{key: end}, visit)
	}

	if errors.Is(iterErr, kv.ErrStopIteration) {
		return nil
	}
	return iterErr
}
