package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/filter"
	"github.com/rushteam/recengine/rerank"
	"github.com/rushteam/recengine/rules"
)

func testFactory() *RuleFactory {
	f := NewRuleFactory()
	f.Register("filter.out_of_stock", func(map[string]any, Deps) (rules.Rule, error) {
		return rules.FilterRule("", 0, filter.OutOfStock{}), nil
	})
	f.Register("rerank.top_n", func(cfg map[string]any, _ Deps) (rules.Rule, error) {
		n, _ := cfg["n"].(int)
		return rules.RerankRule("", 0, &rerank.TopN{N: n}), nil
	})
	return f
}

const rulesYAML = `
rules:
  - type: filter
    kind: out_of_stock
    name: stock
    priority: 100
  - type: rerank
    kind: top_n
    name: cut
    priority: 5
    enabled: false
    config:
      n: 1
`

func TestParseYAMLAndBuild(t *testing.T) {
	cfg, err := ParseYAML([]byte(rulesYAML))
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 2)
	assert.Equal(t, "filter.out_of_stock", cfg.Rules[0].BuilderKey())

	rs, err := cfg.BuildRules(testFactory(), Deps{})
	require.NoError(t, err)
	require.Len(t, rs, 2)
	assert.Equal(t, "stock", rs[0].Name)
	assert.Equal(t, 100, rs[0].Priority)
	assert.True(t, rs[0].Enabled)
	assert.Equal(t, rules.TypeRerank, rs[1].Type)
	assert.False(t, rs[1].Enabled)
}

func TestParseJSON(t *testing.T) {
	cfg, err := ParseJSON([]byte(`{"rules":[{"type":"filter","kind":"out_of_stock","name":"stock","priority":90}]}`))
	require.NoError(t, err)
	rs, err := cfg.BuildRules(testFactory(), Deps{})
	require.NoError(t, err)
	assert.Equal(t, 90, rs[0].Priority)
}

func TestBuildRules_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		rule RuleConfig
	}{
		{"unknown type", RuleConfig{Type: "reorder", Kind: "out_of_stock", Name: "x"}},
		{"unknown kind", RuleConfig{Type: "filter", Kind: "nope", Name: "x"}},
		{"missing name", RuleConfig{Type: "filter", Kind: "out_of_stock"}},
		{"string priority", RuleConfig{Type: "filter", Kind: "out_of_stock", Name: "x", Priority: "high"}},
		{"fractional priority", RuleConfig{Type: "filter", Kind: "out_of_stock", Name: "x", Priority: 1.5}},
		{"bool priority", RuleConfig{Type: "filter", Kind: "out_of_stock", Name: "x", Priority: true}},
		{"type mismatch", RuleConfig{Type: "boost", Kind: "out_of_stock", Name: "x"}},
	}
	f := testFactory()
	f.Register("boost.out_of_stock", func(map[string]any, Deps) (rules.Rule, error) {
		return rules.FilterRule("", 0, filter.OutOfStock{}), nil
	})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&Config{Rules: []RuleConfig{tt.rule}}).BuildRules(f, Deps{})
			assert.True(t, core.IsConfiguration(err), "%v", err)
		})
	}
}

func TestParseYAML_Malformed(t *testing.T) {
	_, err := ParseYAML([]byte("rules: [type: filter"))
	assert.True(t, core.IsConfiguration(err))
}

func TestLoadFileAndInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rulesYAML), 0o600))
	cfg, err := LoadFile(path)
	require.NoError(t, err)

	e := rules.NewEngine()
	require.NoError(t, Install(e, cfg, testFactory(), Deps{}))
	assert.Len(t, e.Summary(), 2)

	lookup := core.ItemLookupFunc(func(_ context.Context, ids []string) (map[string]*core.Item, error) {
		return map[string]*core.Item{"a": {ID: "a", InStock: true}, "b": {ID: "b"}}, nil
	})
	got, err := e.Apply(context.Background(), []core.Candidate{{ItemID: "a", Score: 1}, {ItemID: "b", Score: 2}}, nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, core.CandidateIDs(got))

	// 构建失败时规则集保持不变
	bad := &Config{Rules: []RuleConfig{{Type: "filter", Kind: "nope", Name: "x"}}}
	assert.Error(t, Install(e, bad, testFactory(), Deps{}))
	assert.Len(t, e.Summary(), 2)
}
