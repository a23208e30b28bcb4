package config

import (
	"sort"
	"sync"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pipeline"
)

// 使用配置驱动时，需在 main 或入口处 import _ "github.com/rushteam/recengine/config/builders"
// 以触发内置规则（filter.out_of_stock、boost.promotional、rerank.diversity 等）的 init 注册。

// RuleBuilder 与 pipeline.Builder 一致：根据 config 构建规则。
// 各组件在 init 中调用 Register(key, builder) 即可被配置驱动。
type RuleBuilder = pipeline.Builder

var (
	defaultBuilders   = make(map[string]RuleBuilder)
	defaultBuildersMu sync.RWMutex
)

// Register 注册一种规则的构建逻辑，key 形如 {type}.{kind}。
// 建议在各组件的 init 中调用，例如：func init() { config.Register("filter.blacklist", BuildBlacklist) }
func Register(key string, builder RuleBuilder) {
	if key == "" || builder == nil {
		return
	}
	defaultBuildersMu.Lock()
	defer defaultBuildersMu.Unlock()
	defaultBuilders[key] = builder
}

// SupportedTypes 返回当前已注册的规则 key（排序），用于错误提示与校验。
func SupportedTypes() []string {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	types := make([]string, 0, len(defaultBuilders))
	for t := range defaultBuilders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// DefaultFactory 返回基于当前注册表构建的 RuleFactory。
func DefaultFactory() *pipeline.RuleFactory {
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	f := pipeline.NewRuleFactory()
	for key, builder := range defaultBuilders {
		f.Register(key, builder)
	}
	return f
}

// ValidateRulesConfig 校验所有规则的构建器均已注册；若有未支持的 key 则返回包含已支持列表的配置错误。
func ValidateRulesConfig(cfg *pipeline.Config) error {
	if cfg == nil {
		return nil
	}
	defaultBuildersMu.RLock()
	defer defaultBuildersMu.RUnlock()
	for _, rc := range cfg.Rules {
		if _, ok := defaultBuilders[rc.BuilderKey()]; !ok {
			supported := make([]string, 0, len(defaultBuilders))
			for k := range defaultBuilders {
				supported = append(supported, k)
			}
			sort.Strings(supported)
			return core.NewConfigurationError(core.ModuleConfig, "config: unsupported rule %q (supported: %v)", rc.BuilderKey(), supported)
		}
	}
	return nil
}
