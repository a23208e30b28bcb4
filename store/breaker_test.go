package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

// failingStore 的 Get 总是返回后端错误
type failingStore struct {
	*MemoryStore
	calls int
}

func (f *failingStore) Get(ctx context.Context, key string) ([]byte, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

func TestBreakerStore_OpensAfterFailures(t *testing.T) {
	ctx := context.Background()
	inner := &failingStore{MemoryStore: NewMemoryStore(WithCleanupInterval(0))}
	b := NewBreakerStore(inner, BreakerConfig{FailureThreshold: 3, Timeout: time.Hour}, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := b.Get(ctx, "k")
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Get(ctx, "k")
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))
	assert.Equal(t, 3, inner.calls, "open circuit must not reach the backend")
}

func TestBreakerStore_NotFoundIsNotFailure(t *testing.T) {
	ctx := context.Background()
	b := NewBreakerStore(NewMemoryStore(WithCleanupInterval(0)), BreakerConfig{FailureThreshold: 1}, zerolog.Nop())

	for i := 0; i < 5; i++ {
		_, err := b.Get(ctx, "missing")
		assert.True(t, core.IsStoreNotFound(err))
	}
	assert.Equal(t, gobreaker.StateClosed, b.State())

	require.NoError(t, b.Set(ctx, "k", []byte("v"), 0))
	v, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(v))

	n, err := b.DeletePrefix(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
