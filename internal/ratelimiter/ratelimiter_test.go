package ratelimiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUnlimited(t *testing.T) {
	l := New(0, 0)
	assert.True(t, l.Unlimited())

	for i := 0; i < 10000; i++ {
		require.True(t, l.Allow(), "operation %d rejected by unlimited limiter", i)
	}
}

func TestAllowEnforcesBurst(t *testing.T) {
	l := New(10, 5)
	assert.False(t, l.Unlimited())

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow(), "operation %d within burst rejected", i)
	}
	assert.False(t, l.Allow(), "operation beyond burst admitted")
}

func TestBurstDefaultsToRate(t *testing.T) {
	l := New(3, 0)
	for i := 0; i < 3; i++ {
		require.True(t, l.Allow())
	}
	assert.False(t, l.Allow())
}

func TestWaitPacesOperations(t *testing.T) {
	l := New(50, 1)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 5; i++ {
		require.NoError(t, l.Wait(ctx))
	}
	// 1 from the burst, 4 more at 20ms each.
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestWaitCancelled(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx))
}

func TestSetLimit(t *testing.T) {
	l := New(1, 1)
	require.True(t, l.Allow())
	assert.False(t, l.Allow())

	l.SetLimit(0)
	assert.True(t, l.Unlimited())
	assert.True(t, l.Allow())

	l.SetLimit(100)
	assert.False(t, l.Unlimited())
}

func BenchmarkAllow(b *testing.B) {
	l := New(0, 0)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		l.Allow()
	}
}
