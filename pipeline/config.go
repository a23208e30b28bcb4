package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/conv"
	"github.com/rushteam/recengine/rules"
)

// Config 是规则集的配置结构（支持 YAML/JSON）。
//
//	rules:
//	  - type: filter
//	    kind: blacklist
//	    name: filter_blacklist
//	    priority: 80
//	    config:
//	      item_ids: [a, b]
type Config struct {
	Rules []RuleConfig `yaml:"rules" json:"rules"`
}

// RuleConfig 是单条规则的配置。
type RuleConfig struct {
	Type string `yaml:"type" json:"type"` // filter / boost / rerank
	Kind string `yaml:"kind" json:"kind"` // 构建器名称，与 Type 组成注册 key，如 filter.blacklist
	Name string `yaml:"name" json:"name"`

	// Priority 允许整数或整数字面量的浮点数，其他值视为配置错误
	Priority any   `yaml:"priority" json:"priority"`
	Enabled  *bool `yaml:"enabled" json:"enabled"` // 缺省为 true

	Config map[string]any `yaml:"config" json:"config"`
}

// BuilderKey 返回注册 key：{type}.{kind}；kind 缺省时使用 name。
func (rc RuleConfig) BuilderKey() string {
	kind := rc.Kind
	if kind == "" {
		kind = rc.Name
	}
	return rc.Type + "." + kind
}

func (rc RuleConfig) priority() (int, error) {
	if rc.Priority == nil {
		return 0, nil
	}
	if n, ok := conv.ToInt(rc.Priority); ok {
		return n, nil
	}
	return 0, core.NewConfigurationError(core.ModuleConfig, "pipeline: rule %q has malformed priority %v", rc.Name, rc.Priority)
}

func (rc RuleConfig) enabled() bool {
	return rc.Enabled == nil || *rc.Enabled
}

// ParseYAML 解析 YAML 规则集配置。
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, err, "pipeline: parse yaml")
	}
	return &cfg, nil
}

// ParseJSON 解析 JSON 规则集配置。
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleConfig, core.ErrorCodeConfiguration, err, "pipeline: parse json")
	}
	return &cfg, nil
}

// LoadFromYAML 从 YAML 文件加载规则集配置。
func LoadFromYAML(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseYAML(data)
}

// LoadFromJSON 从 JSON 文件加载规则集配置。
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return ParseJSON(data)
}

// LoadFile 按扩展名选择格式：.json 为 JSON，其余按 YAML 解析。
func LoadFile(path string) (*Config, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return LoadFromJSON(path)
	}
	return LoadFromYAML(path)
}

// BuildRules 根据配置构建规则（需要 RuleFactory 注册构建器）。
// 注意：factory 应该在独立的 config 包中，避免循环依赖。
func (c *Config) BuildRules(factory *RuleFactory, deps Deps) ([]rules.Rule, error) {
	out := make([]rules.Rule, 0, len(c.Rules))
	for i, rc := range c.Rules {
		t, err := rules.ParseType(rc.Type)
		if err != nil {
			return nil, err
		}
		if rc.Name == "" {
			return nil, core.NewConfigurationError(core.ModuleConfig, "pipeline: rule #%d has no name", i)
		}
		priority, err := rc.priority()
		if err != nil {
			return nil, err
		}
		r, err := factory.Build(rc.BuilderKey(), rc.Config, deps)
		if err != nil {
			return nil, fmt.Errorf("build rule %s: %w", rc.Name, err)
		}
		if r.Type != t {
			return nil, core.NewConfigurationError(core.ModuleConfig,
				"pipeline: builder %q produces %s rules, declared %s", rc.BuilderKey(), r.Type, t)
		}
		r.Name = rc.Name
		r.Priority = priority
		r.Enabled = rc.enabled()
		out = append(out, r)
	}
	return out, nil
}
