package conv

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{1.5, 1.5, true},
		{float32(2), 2, true},
		{3, 3, true},
		{int64(4), 4, true},
		{true, 0, false},
		{"5", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := ToFloat64(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestToInt(t *testing.T) {
	n, ok := ToInt(3.0)
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, ok = ToInt(1.5)
	assert.False(t, ok)
	_, ok = ToInt(false)
	assert.False(t, ok)
}

func TestStrings(t *testing.T) {
	assert.Equal(t, []string{"a", "42"}, Strings([]any{"a", 42, 1.5, map[string]any{}}))
	assert.Nil(t, Strings("a"))
	assert.Nil(t, Strings(nil))
}

func TestGet(t *testing.T) {
	cfg := map[string]any{"key": "k", "n": 3.0, "m": 7}
	assert.Equal(t, "k", Get(cfg, "key", ""))
	assert.Equal(t, "d", Get(cfg, "missing", "d"))
	// 类型不符时返回默认值
	assert.Equal(t, "d", Get(cfg, "n", "d"))
	assert.Equal(t, "d", Get[string](nil, "key", "d"))
	assert.Equal(t, 3, Int(cfg, "n", 0))
	assert.Equal(t, 7, Int(cfg, "m", 0))
	assert.Equal(t, 9, Int(nil, "m", 9))
}
