package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/config"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/recall"
)

func TestParseParams(t *testing.T) {
	got, err := parseParams([]string{"country=CN", "alpha=0.5", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"country": "CN", "alpha": "0.5", "empty": ""}, got)

	_, err = parseParams([]string{"country"})
	assert.True(t, core.IsInvalidInput(err))

	got, err = parseParams(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(core.NewConfigurationError(core.ModuleConfig, "bad")))
	assert.Equal(t, 3, exitCode(core.NewNotFoundError(core.ModuleStore, "user", "u1")))
	assert.Equal(t, 1, exitCode(assert.AnError))
}

func TestEngineConfig(t *testing.T) {
	s := config.DefaultSettings()
	s.CollaborativeMetric = "pearson"
	s.HybridPolicy = "rank"
	s.InteractionWeights = map[string]float64{"view": 0.5}

	cfg, err := engineConfig(s)
	require.NoError(t, err)
	assert.Equal(t, recall.Pearson, cfg.Metric)
	assert.Equal(t, hybrid.Rank, cfg.HybridPolicy)
	assert.Equal(t, 0.5, cfg.Weights[core.InteractionView])
	assert.Equal(t, 5.0, cfg.Weights[core.InteractionPurchase])
	assert.Equal(t, s.CollaborativeKNeighbors, cfg.KNeighbors)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "recengine.yaml")
	body := "database:\n  path: " + filepath.Join(dir, "entities.db") + "\nlog:\n  level: error\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o600))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Rules(t *testing.T) {
	out, err := runCLI(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, `"filter_out_of_stock"`)
	assert.Contains(t, out, `"diversity"`)
}

func TestCLI_RebuildEmptyDatabase(t *testing.T) {
	out, err := runCLI(t, "rebuild")
	require.NoError(t, err)
	assert.Contains(t, out, `"users": 0`)
}

func TestCLI_ScoreUnknownUser(t *testing.T) {
	_, err := runCLI(t, "score", "--user", "nobody")
	assert.True(t, core.IsNotFound(err))
}
