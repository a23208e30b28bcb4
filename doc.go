// Package recengine 是一个混合推荐核心。
//
// 设计要点：
// - 两路候选：协同过滤（User-CF / Item-CF）与基于内容（TF-IDF 余弦），按策略混合
// - 规则链：filter → boost → rerank，按优先级执行，单条规则失败不影响整体
// - 缓存可失效：特征与推荐结果共用缓存后端，写路径同步失效，进行中的旧计算不会回写
package recengine

import (
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/engine"
)

// 轻量 facade：便于直接 import "recengine" 使用核心抽象。
type (
	Engine    = engine.Engine
	Option    = engine.Option
	Config    = engine.Config
	Candidate = core.Candidate
)

const (
	Collaborative = engine.Collaborative
	ContentBased  = engine.ContentBased
	Hybrid        = engine.Hybrid
)

// New 创建推荐核心，见 engine.New。
func New(entities core.EntityStore, backend core.Store, opts ...Option) (*Engine, error) {
	return engine.New(entities, backend, opts...)
}
