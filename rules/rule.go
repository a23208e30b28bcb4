// Package rules 实现业务规则引擎：过滤 → 加权 → 重排 的有序规则流水线。
package rules

import (
	"context"

	"github.com/rushteam/recengine/boost"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/filter"
	"github.com/rushteam/recengine/rerank"
)

// Type 是规则类型，同时决定执行阶段。
type Type string

const (
	TypeFilter Type = "filter" // 移除候选，不改变幸存者顺序
	TypeBoost  Type = "boost"  // 调整分数，不增删候选
	TypeRerank Type = "rerank" // 重排/截断
)

// stage 返回类型的执行阶段序号。
func (t Type) stage() int {
	switch t {
	case TypeFilter:
		return 0
	case TypeBoost:
		return 1
	case TypeRerank:
		return 2
	default:
		return -1
	}
}

// ParseType 解析规则类型，未知类型返回配置错误。
func ParseType(s string) (Type, error) {
	t := Type(s)
	if t.stage() < 0 {
		return "", core.NewConfigurationError(core.ModuleRules, "rules: unknown rule type %q", s)
	}
	return t, nil
}

// ApplyFunc 是规则的变换函数：接收当前候选列表，返回完整的替换列表。
// 函数必须是纯的：相同输入（含 rctx 与 lookup 的内容）得到相同输出。
type ApplyFunc func(
	ctx context.Context,
	cands []core.Candidate,
	rctx *core.RecommendContext,
	lookup core.ItemLookup,
) ([]core.Candidate, error)

// Rule 是一条业务规则。
type Rule struct {
	Name string
	Type Type

	// Priority 越大越先执行（同类型内），相同优先级按注册顺序
	Priority int
	Enabled  bool

	Apply ApplyFunc
}

// FilterRule 将 filter.Filter 包装为规则。
func FilterRule(name string, priority int, f filter.Filter) Rule {
	return Rule{
		Name:     name,
		Type:     TypeFilter,
		Priority: priority,
		Enabled:  true,
		Apply: func(ctx context.Context, cands []core.Candidate, rctx *core.RecommendContext, lookup core.ItemLookup) ([]core.Candidate, error) {
			return filter.Apply(ctx, f, cands, rctx, lookup)
		},
	}
}

// BoostRule 将 boost.Booster 包装为规则。
func BoostRule(name string, priority int, b boost.Booster) Rule {
	return Rule{
		Name:     name,
		Type:     TypeBoost,
		Priority: priority,
		Enabled:  true,
		Apply: func(ctx context.Context, cands []core.Candidate, rctx *core.RecommendContext, lookup core.ItemLookup) ([]core.Candidate, error) {
			return boost.Apply(ctx, b, cands, rctx, lookup)
		},
	}
}

// RerankRule 将 rerank.Reranker 包装为规则。
func RerankRule(name string, priority int, r rerank.Reranker) Rule {
	return Rule{
		Name:     name,
		Type:     TypeRerank,
		Priority: priority,
		Enabled:  true,
		Apply:    r.Rerank,
	}
}

func (r Rule) validate() error {
	if r.Name == "" {
		return core.NewConfigurationError(core.ModuleRules, "rules: rule name is empty")
	}
	if _, err := ParseType(string(r.Type)); err != nil {
		return err
	}
	if r.Apply == nil {
		return core.NewConfigurationError(core.ModuleRules, "rules: rule %q has no apply function", r.Name)
	}
	return nil
}

// RuleSummary 是规则的只读描述，按执行顺序排列。
type RuleSummary struct {
	Name     string `json:"name" yaml:"name"`
	Type     Type   `json:"type" yaml:"type"`
	Priority int    `json:"priority" yaml:"priority"`
	Enabled  bool   `json:"enabled" yaml:"enabled"`
}
