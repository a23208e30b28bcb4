package guard

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerations(t *testing.T) {
	tests := []struct {
		name  string
		keys  []string
		apply func(g *Generations)
		valid bool
	}{
		{"untouched", []string{"user:u1"}, func(*Generations) {}, true},
		{"bumped key", []string{"user:u1", "items"}, func(g *Generations) { g.Bump("items") }, false},
		{"unrelated key", []string{"user:u1"}, func(g *Generations) { g.Bump("user:u2") }, true},
		{"bump all", []string{"user:u1"}, func(g *Generations) { g.BumpAll() }, false},
		{"no keys fails bump all", nil, func(g *Generations) { g.BumpAll() }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerations()
			token := g.Snapshot(tt.keys...)
			tt.apply(g)
			assert.Equal(t, tt.valid, g.Valid(token))
			g.Release(token)
			assert.Zero(t, g.Len())
		})
	}
}

func TestGenerations_SharedKey(t *testing.T) {
	g := NewGenerations()
	first := g.Snapshot("user:u1")
	second := g.Snapshot("user:u1")

	g.Release(first)
	assert.Equal(t, 1, g.Len())
	g.Bump("user:u1")
	assert.False(t, g.Valid(second))

	g.Release(second)
	assert.Zero(t, g.Len())
}

func TestGenerations_BoundedByInFlight(t *testing.T) {
	g := NewGenerations()
	token := g.Snapshot("user:0")
	for i := range 10000 {
		g.Bump("user:" + strconv.Itoa(i))
	}
	assert.Equal(t, 1, g.Len())
	assert.False(t, g.Valid(token))
	g.Release(token)

	fresh := g.Snapshot("user:0")
	assert.True(t, g.Valid(fresh))
	g.Release(fresh)
	assert.Zero(t, g.Len())
}
