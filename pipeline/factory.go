package pipeline

import (
	"sort"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/rules"
)

// Deps 是构建规则时可用的协作方，按需为空。
type Deps struct {
	// Store 用于黑名单、用户拉黑等存储型过滤器
	Store     core.Store
	Purchases core.PurchaseLookup
	Clock     core.Clock
}

// Builder 根据 config 构建规则；名称、优先级与启用状态由配置覆盖。
type Builder func(cfg map[string]any, deps Deps) (rules.Rule, error)

// RuleFactory 用于根据配置构建规则实例。
type RuleFactory struct {
	builders map[string]Builder
}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{builders: make(map[string]Builder)}
}

// Register 注册规则构建器，key 形如 filter.blacklist。
func (f *RuleFactory) Register(key string, builder Builder) {
	f.builders[key] = builder
}

// Has 判断 key 是否已注册。
func (f *RuleFactory) Has(key string) bool {
	_, ok := f.builders[key]
	return ok
}

// Keys 返回已注册的 key（排序）。
func (f *RuleFactory) Keys() []string {
	keys := make([]string, 0, len(f.builders))
	for k := range f.builders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Build 根据 key 和配置构建规则。
func (f *RuleFactory) Build(key string, cfg map[string]any, deps Deps) (rules.Rule, error) {
	builder, ok := f.builders[key]
	if !ok {
		return rules.Rule{}, core.NewConfigurationError(core.ModuleConfig, "pipeline: unknown rule builder %q (supported: %v)", key, f.Keys())
	}
	return builder(cfg, deps)
}
