package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

// 需要真实的 Redis，通过 RECENGINE_TEST_REDIS_ADDR 指定地址
func TestRedisStore(t *testing.T) {
	addr := os.Getenv("RECENGINE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("需要连接真实的 Redis 才能运行（设置 RECENGINE_TEST_REDIS_ADDR）")
	}
	ctx := context.Background()

	s, err := NewRedisStore(ctx, RedisConfig{Addr: addr, ScanCount: 2})
	require.NoError(t, err)
	defer s.Close()

	prefix := "recengine:test:" + time.Now().Format("150405.000000") + ":"
	require.NoError(t, s.BatchSet(ctx, map[string][]byte{
		prefix + "a": []byte("1"),
		prefix + "b": []byte("2"),
		prefix + "c": []byte("3"),
	}, time.Minute))

	v, err := s.Get(ctx, prefix+"a")
	require.NoError(t, err)
	assert.Equal(t, "1", string(v))

	got, err := s.BatchGet(ctx, []string{prefix + "a", prefix + "missing"})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	n, err := s.DeletePrefix(ctx, prefix)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = s.Get(ctx, prefix+"b")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestEscapeGlob(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"recs:user:u1:", "recs:user:u1:"},
		{"a*b", `a\*b`},
		{"[x]?", `\[x\]\?`},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, escapeGlob(tt.in))
		})
	}
}
