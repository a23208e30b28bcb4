package config

import (
	"github.com/rushteam/recengine/pipeline"
	"github.com/rushteam/recengine/rules"
)

// BuildRules 使用默认注册表构建规则集。
func BuildRules(cfg *pipeline.Config, deps pipeline.Deps) ([]rules.Rule, error) {
	if err := ValidateRulesConfig(cfg); err != nil {
		return nil, err
	}
	return cfg.BuildRules(DefaultFactory(), deps)
}

// LoadRules 从文件加载规则集并构建。
func LoadRules(path string, deps pipeline.Deps) ([]rules.Rule, error) {
	cfg, err := pipeline.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return BuildRules(cfg, deps)
}

// InstallRules 从文件加载规则集并整体替换 engine 的规则。
func InstallRules(engine *rules.Engine, path string, deps pipeline.Deps) error {
	cfg, err := pipeline.LoadFile(path)
	if err != nil {
		return err
	}
	if err := ValidateRulesConfig(cfg); err != nil {
		return err
	}
	return pipeline.Install(engine, cfg, DefaultFactory(), deps)
}
