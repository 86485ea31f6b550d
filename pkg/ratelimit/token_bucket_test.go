package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucket_AllowsUpToCapacity(t *testing.T) {
	t.Parallel()

	// No refill so the count is deterministic
	tb := NewTokenBucket(3, 0)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())
}

func TestTokenBucket_AllowN(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(10, 0)

	assert.True(t, tb.AllowN(7))
	assert.False(t, tb.AllowN(5))
	assert.True(t, tb.AllowN(3))
}

func TestTokenBucket_Reset(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(1, 0)

	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestTokenBucket_Available(t *testing.T) {
	t.Parallel()

	tb := NewTokenBucket(5, 0)
	tb.AllowN(2)

	assert.InDelta(t, 3, tb.Available(), 0.001)
}
