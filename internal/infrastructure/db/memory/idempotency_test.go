package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdempotencyStore_ClaimBind(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()

	claimed, _, err := s.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, id, err := s.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Zero(t, id, "pending key reports no id")

	require.NoError(t, s.Bind(ctx, "k1", 7))

	claimed, id, err = s.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, claimed)
	assert.Equal(t, int64(7), id)
}

func TestIdempotencyStore_Release(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()

	_, _, err := s.Claim(ctx, "k1")
	require.NoError(t, err)
	require.NoError(t, s.Release(ctx, "k1"))

	claimed, _, err := s.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, claimed, "released key can be claimed again")

	require.NoError(t, s.Bind(ctx, "k1", 3))
	require.NoError(t, s.Release(ctx, "k1"))

	_, id, err := s.Claim(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), id, "bound key survives release")
}

func TestIdempotencyStore_ConcurrentClaim(t *testing.T) {
	ctx := context.Background()
	s := NewIdempotencyStore()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _, _ := s.Claim(ctx, "same"); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}
