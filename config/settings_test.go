package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Layers(t *testing.T) {
	path := writeFile(t, "recengine.yaml", `
hybrid_alpha: 0.7
content_top_n: 25
cache_ttl: 10m
interaction_weights:
  purchase: 8
cache:
  backend: redis
redis:
  addr: redis:6379
`)
	t.Setenv("RECENGINE_CONTENT_TOP_N", "40")
	t.Setenv("RECENGINE_LOG__LEVEL", "debug")

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, s.HybridAlpha)
	assert.Equal(t, 40, s.ContentTopN)
	assert.Equal(t, 10*time.Minute, s.CacheTTL)
	assert.Equal(t, time.Hour, s.FeatureCacheTTL)
	assert.Equal(t, 20, s.CollaborativeKNeighbors)
	assert.Equal(t, "redis", s.Cache.Backend)
	assert.Equal(t, "redis:6379", s.Redis.Addr)
	assert.Equal(t, "debug", s.Log.Level)

	w, err := s.Weights()
	require.NoError(t, err)
	assert.Equal(t, 8.0, w[core.InteractionPurchase])
	assert.Equal(t, 2.0, w[core.InteractionClick])
}

func TestLoad_InvalidFile(t *testing.T) {
	path := writeFile(t, "bad.yaml", "hybrid_alpha: [")
	_, err := Load(path)
	assert.True(t, core.IsConfiguration(err))
}

func TestSettings_Validate(t *testing.T) {
	require.NoError(t, DefaultSettings().Validate())

	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"alpha above one", func(s *Settings) { s.HybridAlpha = 1.2 }},
		{"zero neighbors", func(s *Settings) { s.CollaborativeKNeighbors = 0 }},
		{"zero diversity cap", func(s *Settings) { s.DiversityMaxPerCategory = 0 }},
		{"unknown policy", func(s *Settings) { s.HybridPolicy = "blend" }},
		{"unknown metric", func(s *Settings) { s.CollaborativeMetric = "jaccard" }},
		{"unknown cf mode", func(s *Settings) { s.CFMode = "hybrid" }},
		{"unknown backend", func(s *Settings) { s.Cache.Backend = "memcached" }},
		{"unknown item policy", func(s *Settings) { s.Cache.ItemPolicy = "lru" }},
		{"unknown weight type", func(s *Settings) { s.InteractionWeights = map[string]float64{"share": 1} }},
		{"negative weight", func(s *Settings) { s.InteractionWeights = map[string]float64{"view": -1} }},
		{"bad log level", func(s *Settings) { s.Log.Level = "loud" }},
		{"redis without addr", func(s *Settings) { s.Cache.Backend = "redis"; s.Redis.Addr = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(s)
			assert.True(t, core.IsConfiguration(s.Validate()))
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	assert.Equal(t, "hybrid_alpha", envTransformFunc("RECENGINE_HYBRID_ALPHA"))
	assert.Equal(t, "redis.addr", envTransformFunc("RECENGINE_REDIS__ADDR"))
	assert.Equal(t, "", envTransformFunc(ConfigPathEnvVar))
}
