package engine

import (
	"context"
	"strconv"
	"time"

	"github.com/rushteam/recengine/cache"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/pkg/metrics"
	"github.com/rushteam/recengine/recall"
	"github.com/rushteam/recengine/rules"
)

// 打分参数名。
const (
	ParamPolicy            = "policy"
	ParamAlpha             = "alpha"
	ParamRankMode          = "rank_mode"
	ParamCFMode            = "cf_mode"
	ParamExcludeInteracted = "exclude_interacted"
	ParamApplyRules        = "apply_rules"
)

// 请求上下文参数名，写入 RecommendContext；其余未识别的参数进入 Extra。
const (
	ParamCountry   = "country"
	ParamDevice    = "device"
	ParamTimeOfDay = "time_of_day"
	ParamIsWeekend = "is_weekend"
	ParamWeather   = "weather"
)

type scoreParams struct {
	policy            hybrid.Policy
	alpha             float64
	rankMode          hybrid.RankMode
	cfMode            recall.CFMode
	excludeInteracted bool
	applyRules        bool
}

func (e *Engine) parseParams(params map[string]string) (scoreParams, error) {
	p := scoreParams{
		policy:            e.cfg.HybridPolicy,
		alpha:             e.cfg.HybridAlpha,
		rankMode:          e.cfg.RankMode,
		cfMode:            e.cfg.CFMode,
		excludeInteracted: true,
		applyRules:        true,
	}
	var err error
	if v, ok := params[ParamPolicy]; ok {
		if p.policy, err = hybrid.ParsePolicy(v); err != nil {
			return p, err
		}
	}
	if v, ok := params[ParamRankMode]; ok {
		if p.rankMode, err = hybrid.ParseRankMode(v); err != nil {
			return p, err
		}
	}
	if v, ok := params[ParamCFMode]; ok {
		if p.cfMode, err = recall.ParseCFMode(v); err != nil {
			return p, err
		}
	}
	if v, ok := params[ParamAlpha]; ok {
		if p.alpha, err = strconv.ParseFloat(v, 64); err != nil || p.alpha < 0 || p.alpha > 1 {
			return p, core.NewConfigurationError(core.ModuleEngine, "engine: alpha %q must be a number in [0,1]", v)
		}
	}
	for key, dst := range map[string]*bool{
		ParamExcludeInteracted: &p.excludeInteracted,
		ParamApplyRules:        &p.applyRules,
	} {
		if v, ok := params[key]; ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return p, core.NewConfigurationError(core.ModuleEngine, "engine: %s %q is not a boolean", key, v)
			}
			*dst = b
		}
	}
	return p, nil
}

// requestContext 由用户与请求参数构建规则上下文。
func (e *Engine) requestContext(userID string, user *core.User, params map[string]string) *core.RecommendContext {
	rctx := &core.RecommendContext{UserID: userID, User: user, Now: e.clock.Now()}
	for k, v := range params {
		switch k {
		case ParamCountry:
			rctx.Country = v
		case ParamDevice:
			rctx.Device = v
		case ParamTimeOfDay:
			rctx.TimeOfDay = v
		case ParamIsWeekend:
			rctx.IsWeekend, _ = strconv.ParseBool(v)
		case ParamWeather:
			rctx.Weather = v
		case ParamPolicy, ParamAlpha, ParamRankMode, ParamCFMode, ParamExcludeInteracted, ParamApplyRules:
		default:
			rctx.PutExtra(k, v)
		}
	}
	return rctx
}

// Score 为用户生成推荐列表：候选生成 → 业务规则 → 截断到 topN，结果按 (user, algorithm, topN, params) 缓存。
//
// algorithm 为 collaborative / content_based / hybrid，未知算法或非法参数返回配置错误；
// 用户不存在返回 NOT_FOUND；冷启动返回空列表。失败的计算不会写入缓存。
func (e *Engine) Score(ctx context.Context, userID, algorithm string, topN int, params map[string]string) ([]core.Candidate, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if topN <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: top_n must be positive")
	}
	p, err := e.parseParams(params)
	if err != nil {
		return nil, err
	}
	user, err := e.entities.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := cache.Key{UserID: userID, Algorithm: string(algo), TopN: topN, Params: params}
	if p.applyRules {
		key.RulesVersion = e.rules.Version()
	}
	return e.recs.GetOrCompute(ctx, key, func(ctx context.Context) ([]core.Candidate, error) {
		defer metrics.ObserveScore(string(algo), time.Now())
		pool := topN
		if p.applyRules {
			pool = topN * e.cfg.PoolFactor
		}
		cands, err := e.generate(ctx, algo, userID, pool, p)
		if err != nil {
			return nil, err
		}
		if p.applyRules {
			rctx := e.requestContext(userID, user, params)
			if cands, err = e.rules.Apply(ctx, cands, rctx, core.EntityItemLookup(e.entities)); err != nil {
				return nil, err
			}
		}
		return core.TruncateCandidates(cands, topN), nil
	})
}

// generate 生成未经规则处理的候选，长度不超过 pool。hybrid 通过 Fanout 并发执行两路打分。
func (e *Engine) generate(ctx context.Context, algo Algorithm, userID string, pool int, p scoreParams) ([]core.Candidate, error) {
	if err := e.ensureSnapshots(ctx); err != nil {
		return nil, err
	}
	switch algo {
	case Collaborative:
		return e.collaborative(ctx, userID, pool, p)
	case ContentBased:
		return e.content(ctx, userID, pool, p)
	}

	collab := e.collaborativeRecall(p)
	collab.TopN = pool
	content := e.contentRecall(p)
	content.TopN = max(pool, e.cfg.ContentTopN)
	fan := &recall.Fanout{Sources: []recall.Source{collab, content}, Logger: e.logger}
	lists, err := fan.Run(ctx, &core.RecommendContext{UserID: userID})
	if err != nil {
		return nil, err
	}
	comb := hybrid.Combiner{Alpha: p.alpha, Policy: p.policy, RankMode: p.rankMode}
	return comb.Combine(lists[0], lists[1], pool)
}

func (e *Engine) collaborativeRecall(p scoreParams) *recall.CollaborativeRecall {
	return &recall.CollaborativeRecall{
		Matrix: e.matrix.Load,
		Mode:   p.cfMode,
		User: recall.UserBasedCF{
			KNeighbors:        e.cfg.KNeighbors,
			MinInteractions:   e.cfg.MinInteractions,
			Metric:            e.cfg.Metric,
			IncludeInteracted: !p.excludeInteracted,
		},
		Item: recall.ItemBasedCF{
			KNeighbors:          e.cfg.KNeighbors,
			MinInteractions:     e.cfg.MinInteractions,
			MinItemInteractions: e.cfg.MinInteractions,
			Metric:              e.cfg.Metric,
			IncludeInteracted:   !p.excludeInteracted,
		},
	}
}

func (e *Engine) collaborative(_ context.Context, userID string, topN int, p scoreParams) ([]core.Candidate, error) {
	m := e.matrix.Load()
	if m == nil {
		return nil, nil
	}
	return e.collaborativeRecall(p).Score(m, userID, p.cfMode, topN)
}

func (e *Engine) contentRecall(p scoreParams) *recall.ContentRecall {
	return &recall.ContentRecall{
		Corpus:            e.corpus.Load,
		Entities:          e.entities,
		Weights:           e.cfg.Weights,
		HalfLife:          e.cfg.ContentHalfLife,
		Clock:             e.clock,
		TopN:              e.cfg.ContentTopN,
		IncludeInteracted: !p.excludeInteracted,
		PopularFallback:   e.cfg.PopularFallback,
	}
}

// content 返回内容候选，长度取 pool 与 ContentTopN 的较大者。
func (e *Engine) content(ctx context.Context, userID string, pool int, p scoreParams) ([]core.Candidate, error) {
	return e.contentRecall(p).Score(ctx, userID, max(pool, e.cfg.ContentTopN))
}

// ApplyBusinessRules 对外部给出的候选执行业务规则；types 为空时执行全部类型。
// rctx.User 为空且给出 UserID 时从实体存储补全，rctx.Now 为空时使用当前时钟。
func (e *Engine) ApplyBusinessRules(ctx context.Context, cands []core.Candidate, rctx *core.RecommendContext, types ...rules.Type) ([]core.Candidate, error) {
	if rctx == nil {
		rctx = &core.RecommendContext{}
	}
	if rctx.Now.IsZero() {
		rctx.Now = e.clock.Now()
	}
	if rctx.User == nil && rctx.UserID != "" {
		u, err := e.entities.GetUser(ctx, rctx.UserID)
		switch {
		case err == nil:
			rctx.User = u
		case !core.IsNotFound(err):
			return nil, err
		}
	}
	return e.rules.Apply(ctx, cands, rctx, core.EntityItemLookup(e.entities), types...)
}
