// Package pipeline 负责从 YAML/JSON 配置构建业务规则集，并装载到规则引擎。
package pipeline

import (
	"github.com/rushteam/recengine/rules"
)

// Install 按配置构建规则并整体替换 engine 的规则集；构建失败时 engine 保持不变。
func Install(engine *rules.Engine, cfg *Config, factory *RuleFactory, deps Deps) error {
	rs, err := cfg.BuildRules(factory, deps)
	if err != nil {
		return err
	}
	return engine.Replace(rs)
}
