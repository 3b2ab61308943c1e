// Package testing provides a conformance suite every kv.Engine must pass.
package testing

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/marmos91/nameserver/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// EngineTestSuite runs the conformance tests against engines built by NewEngine.
type EngineTestSuite struct {
	NewEngine func(t *testing.T) kv.Engine
}

// Run executes all engine tests.
func (suite *EngineTestSuite) Run(t *testing.T) {
	t.Run("PointOperations", suite.testPointOperations)
	t.Run("IterateRange", suite.testIterateRange)
	t.Run("IterateStop", suite.testIterateStop)
	t.Run("UpdateRollback", suite.testUpdateRollback)
	t.Run("ReadYourWrites", suite.testReadYourWrites)
	t.Run("ConcurrentBatches", suite.testConcurrentBatches)
}

func (suite *EngineTestSuite) newEngine(t *testing.T) kv.Engine {
	t.Helper()
	engine := suite.NewEngine(t)
	t.Cleanup(func() { _ = engine.Close() })
	return engine
}

func put(t *testing.T, engine kv.Engine, pairs ...string) {
	t.Helper()
	require.Zero(t, len(pairs)%2)
	err := engine.Update(context.Background(), func(txn kv.Txn) error {
		for i := 0; i < len(pairs); i += 2 {
			if err := txn.Set([]byte(pairs[i]), []byte(pairs[i+1])); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func get(t *testing.T, engine kv.Engine, key string) (string, error) {
	t.Helper()
	var value []byte
	err := engine.View(context.Background(), func(txn kv.Txn) error {
		v, err := txn.Get([]byte(key))
		value = v
		return err
	})
	return string(value), err
}

func scan(t *testing.T, engine kv.Engine, start, end []byte) []string {
	t.Helper()
	var keys []string
	err := engine.View(context.Background(), func(txn kv.Txn) error {
		return txn.Iterate(start, end, func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		})
	})
	require.NoError(t, err)
	return keys
}

func (suite *EngineTestSuite) testPointOperations(t *testing.T) {
	engine := suite.newEngine(t)

	_, err := get(t, engine, "missing")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)

	put(t, engine, "k", "v1")
	value, err := get(t, engine, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", value)

	put(t, engine, "k", "v2")
	value, err = get(t, engine, "k")
	require.NoError(t, err)
	assert.Equal(t, "v2", value)

	err = engine.Update(context.Background(), func(txn kv.Txn) error {
		return txn.Delete([]byte("k"))
	})
	require.NoError(t, err)
	_, err = get(t, engine, "k")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
}

func (suite *EngineTestSuite) testIterateRange(t *testing.T) {
	engine := suite.newEngine(t)
	put(t, engine, "a/3", "3", "b/1", "4", "a/1", "1", "a/2", "2", "a", "0")

	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, scan(t, engine, []byte("a/"), []byte("b/")))
	assert.Equal(t, []string{"a/2", "a/3", "b/1"}, scan(t, engine, []byte("a/2"), nil))
	assert.Empty(t, scan(t, engine, []byte("b/"), []byte("a/")))
	assert.Equal(t, []string{"a/1", "a/2", "a/3"}, scan(t, engine, []byte("a/"), kv.PrefixEnd([]byte("a/"))))
}

func (suite *EngineTestSuite) testIterateStop(t *testing.T) {
	engine := suite.newEngine(t)
	put(t, engine, "x1", "", "x2", "", "x3", "")

	var seen []string
	err := engine.View(context.Background(), func(txn kv.Txn) error {
		return txn.Iterate([]byte("x"), nil, func(key, _ []byte) error {
			seen = append(seen, string(key))
			if len(seen) == 2 {
				return kv.ErrStopIteration
			}
			return nil
		})
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x1", "x2"}, seen)
}

func (suite *EngineTestSuite) testUpdateRollback(t *testing.T) {
	engine := suite.newEngine(t)
	put(t, engine, "keep", "1")

	boom := errors.New("boom")
	err := engine.Update(context.Background(), func(txn kv.Txn) error {
		require.NoError(t, txn.Set([]byte("new"), []byte("x")))
		require.NoError(t, txn.Delete([]byte("keep")))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = get(t, engine, "new")
	assert.ErrorIs(t, err, kv.ErrKeyNotFound)
	value, err := get(t, engine, "keep")
	require.NoError(t, err)
	assert.Equal(t, "1", value)
}

func (suite *EngineTestSuite) testReadYourWrites(t *testing.T) {
	engine := suite.newEngine(t)
	put(t, engine, "p/1", "old")

	err := engine.Update(context.Background(), func(txn kv.Txn) error {
		require.NoError(t, txn.Set([]byte("p/2"), []byte("new")))
		require.NoError(t, txn.Delete([]byte("p/1")))

		v, err := txn.Get([]byte("p/2"))
		require.NoError(t, err)
		assert.Equal(t, "new", string(v))

		_, err = txn.Get([]byte("p/1"))
		assert.ErrorIs(t, err, kv.ErrKeyNotFound)

		var keys []string
		require.NoError(t, txn.Iterate([]byte("p/"), []byte("q"), func(key, _ []byte) error {
			keys = append(keys, string(key))
			return nil
		}))
		assert.Equal(t, []string{"p/2"}, keys)
		return nil
	})
	require.NoError(t, err)
}

// testConcurrentBatches moves a single token between two keys while readers
// check that exactly one key holds it at any time.
func (suite *EngineTestSuite) testConcurrentBatches(t *testing.T) {
	engine := suite.newEngine(t)
	put(t, engine, "left", "token")

	var mu sync.Mutex
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		from, to := "left", "right"
		for i := 0; i < 200; i++ {
			mu.Lock()
			err := engine.Update(context.Background(), func(txn kv.Txn) error {
				if err := txn.Delete([]byte(from)); err != nil {
					return err
				}
				return txn.Set([]byte(to), []byte("token"))
			})
			mu.Unlock()
			if !assert.NoError(t, err) {
				break
			}
			from, to = to, from
		}
		close(stop)
	}()

	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				var keys []string
				err := engine.View(context.Background(), func(txn kv.Txn) error {
					return txn.Iterate([]byte("left"), []byte("rightz"), func(key, _ []byte) error {
						keys = append(keys, string(key))
						return nil
					})
				})
				if !assert.NoError(t, err) || !assert.Len(t, keys, 1) {
					return
				}
			}
		}()
	}

	wg.Wait()
}
