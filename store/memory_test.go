package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

func newTestMemoryStore(t *testing.T, clock core.Clock) *MemoryStore {
	t.Helper()
	s := NewMemoryStore(WithMemoryClock(clock), WithCleanupInterval(0))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMemoryStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	clock := core.NewFixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := newTestMemoryStore(t, clock)

	_, err := s.Get(ctx, "missing")
	require.Error(t, err)
	assert.True(t, core.IsStoreNotFound(err))

	require.NoError(t, s.Set(ctx, "a", []byte("1"), 0))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	assert.True(t, core.IsStoreNotFound(err))

	// 删除不存在的 key 不报错
	require.NoError(t, s.Delete(ctx, "a"))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	clock := core.NewFixedClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	s := newTestMemoryStore(t, clock)

	require.NoError(t, s.Set(ctx, "k", []byte("v"), time.Minute))
	_, err := s.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = s.Get(ctx, "k")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
	assert.Equal(t, 0, s.Len())
}

func TestMemoryStore_DeletePrefix(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, core.SystemClock{})

	require.NoError(t, s.BatchSet(ctx, map[string][]byte{
		"recs:user:u1:hybrid":  []byte("a"),
		"recs:user:u1:content": []byte("b"),
		"recs:user:u10:hybrid": []byte("c"),
		"recs:user:u2:hybrid":  []byte("d"),
	}, 0))

	n, err := s.DeletePrefix(ctx, "recs:user:u1:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := s.BatchGet(ctx, []string{"recs:user:u1:hybrid", "recs:user:u10:hybrid", "recs:user:u2:hybrid"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Contains(t, got, "recs:user:u10:hybrid")
}

func TestMemoryStore_ValueIsCopied(t *testing.T) {
	ctx := context.Background()
	s := newTestMemoryStore(t, core.SystemClock{})

	buf := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(v))
}
