// Package kv defines the ordered key-value engine the namespace layer is built on.
//
// An Engine provides point reads and writes, ordered range scans over a flat
// byte-string key space, and atomic multi-key batches. Two implementations
// ship with this module:
//
//   - pkg/kv/memory: an ordered in-memory map, used by tests and ephemeral setups
//   - pkg/kv/badger: a persistent BadgerDB-backed engine for production
//
// Transactions follow BadgerDB's closure style: View runs a read-only
// function against a consistent view, Update runs a read-write function whose
// writes are applied as a single atomic batch when the function returns nil and
// discarded otherwise.
package kv

import (
	"context"
	"errors"
)

// ErrKeyNotFound is returned by Txn.Get and Txn.Delete-aware helpers when
// the key is absent.
var ErrKeyNotFound = errors.New("kv: key not found")

// ErrConflict is returned by Update when the engine aborted the batch
// because of a concurrent conflicting writer.
var ErrConflict = errors.New("kv: transaction conflict")

// ErrStopIteration can be returned from an Iterate callback to end the scan
// early without failing the transaction.
var ErrStopIteration = errors.New("kv: stop iteration")

// Engine is an ordered key-value store with atomic batches.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type Engine interface {
	// View runs fn against a consistent read-only view of the store.
	// Calling Set or Delete on the Txn returns an error.
	View(ctx context.Context, fn func(txn Txn) error) error

	// Update runs fn in a read-write transaction. If fn returns nil every
	// staged write becomes visible at once; otherwise none does.
	Update(ctx context.Context, fn func(txn Txn) error) error

	// Close releases the engine's resources. The engine must not be used
	// afterwards.
	Close() error
}

// Txn is the view of the store inside a View or Update call.
//
// Reads inside an Update observe the transaction's own staged writes.
// Values returned by Get and passed to Iterate callbacks are owned by the
// caller and remain valid after the transaction ends.
type Txn interface {
	// Get returns the value stored at key or ErrKeyNotFound.
	Get(key []byte) ([]byte, error)

	// Set stages an upsert of key.
	Set(key, value []byte) error

	// Delete stages the removal of key. Deleting an absent key is not an error.
	Delete(key []byte) error

	// Iterate calls fn for every key in [start, end) in ascending order.
	// A nil end scans to the end of the key space. Returning ErrStopIteration
	// from fn ends the scan and Iterate returns nil; any other error aborts
	// the scan and is returned.
	Iterate(start, end []byte, fn func(key, value []byte) error) error
}

// PrefixEnd returns the smallest key greater than every key with the given
// prefix, or nil when no such key exists (prefix is all 0xff bytes).
func PrefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Exists reports whether key is present, translating ErrKeyNotFound into false.
func Exists(txn Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
