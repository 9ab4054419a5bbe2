package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiterEnforcesLimit(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := l.Allow(ctx, "login:1.2.3.4", 3)
		require.NoError(t, err)
		assert.True(t, ok, "request %d should pass", i+1)
	}
	ok, err := l.Allow(ctx, "login:1.2.3.4", 3)
	require.NoError(t, err)
	assert.False(t, ok, "fourth request exceeds the limit")

	// a different key has its own budget
	ok, err = l.Allow(ctx, "login:5.6.7.8", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryLimiterWindowResets(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	base := time.Now()
	l.now = func() time.Time { return base }
	ctx := context.Background()

	ok, err := l.Allow(ctx, "k", 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "k", 1)
	assert.False(t, ok)

	l.now = func() time.Time { return base.Add(2 * time.Minute) }
	ok, err = l.Allow(ctx, "k", 1)
	require.NoError(t, err)
	assert.True(t, ok, "count resets after the window passes")
}
