package engine

import (
	"context"
	"time"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/feature"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/recall"
	"github.com/rushteam/recengine/rules"
)

func (e *Engine) GetUserFeatures(ctx context.Context, userID string) (*feature.Vector, error) {
	return e.features.GetUserFeatures(ctx, userID)
}

func (e *Engine) GetItemFeatures(ctx context.Context, itemID string) (*feature.Vector, error) {
	return e.features.GetItemFeatures(ctx, itemID)
}

func (e *Engine) GetPairFeatures(ctx context.Context, userID, itemID string) (*feature.Vector, error) {
	return e.features.GetPairFeatures(ctx, userID, itemID)
}

// BatchGetUserFeatures 批量获取用户特征，语义与逐个调用一致：任一用户不存在时返回 NOT_FOUND。
func (e *Engine) BatchGetUserFeatures(ctx context.Context, userIDs []string) (map[string]*feature.Vector, error) {
	return e.features.BatchGetUserFeatures(ctx, userIDs)
}

func (e *Engine) BatchGetItemFeatures(ctx context.Context, itemIDs []string) (map[string]*feature.Vector, error) {
	return e.features.BatchGetItemFeatures(ctx, itemIDs)
}

func (e *Engine) BatchGetPairFeatures(ctx context.Context, pairs []core.FeaturePair) (map[core.FeaturePair]*feature.Vector, error) {
	return e.features.BatchGetPairFeatures(ctx, pairs)
}

// Trending 返回时间窗口内的热门物品。开启 WithTrendingFilters 时先执行过滤规则再截断。
func (e *Engine) Trending(ctx context.Context, window time.Duration, limit int) ([]core.Candidate, error) {
	if limit <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: trending limit must be positive")
	}
	t := &recall.Trending{Entities: e.entities, Weights: e.cfg.Weights, Clock: e.clock}
	if !e.trendingFilters {
		return t.Top(ctx, window, limit)
	}
	all, err := t.Top(ctx, window, 0)
	if err != nil {
		return nil, err
	}
	rctx := &core.RecommendContext{Now: e.clock.Now()}
	out, err := e.rules.Apply(ctx, all, rctx, core.EntityItemLookup(e.entities), rules.TypeFilter)
	if err != nil {
		return nil, err
	}
	return core.TruncateCandidates(out, limit), nil
}

// Explain 拆解物品在 weighted 合并下的得分，alpha 可由 params 覆盖。用户不存在返回 NOT_FOUND。
func (e *Engine) Explain(ctx context.Context, userID, itemID string, params map[string]string) (hybrid.Explanation, error) {
	p, err := e.parseParams(params)
	if err != nil {
		return hybrid.Explanation{}, err
	}
	if _, err := e.entities.GetUser(ctx, userID); err != nil {
		return hybrid.Explanation{}, err
	}
	if err := e.ensureSnapshots(ctx); err != nil {
		return hybrid.Explanation{}, err
	}
	collab, err := e.collaborative(ctx, userID, 0, p)
	if err != nil {
		return hybrid.Explanation{}, err
	}
	content, err := e.contentRecall(p).Score(ctx, userID, 0)
	if err != nil {
		return hybrid.Explanation{}, err
	}
	return hybrid.Explain(collab, content, itemID, p.alpha), nil
}

// SimilarItems 返回与 itemID 最相似的 n 个物品：content_based 使用 TF-IDF 余弦，
// collaborative 使用评分矩阵上的物品相似度。hybrid 不支持。
func (e *Engine) SimilarItems(ctx context.Context, itemID, algorithm string, n int) ([]core.Candidate, error) {
	algo, err := ParseAlgorithm(algorithm)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: n must be positive")
	}
	if _, err := e.entities.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	if err := e.ensureSnapshots(ctx); err != nil {
		return nil, err
	}
	switch algo {
	case ContentBased:
		return e.corpus.Load().SimilarItems(itemID, n), nil
	case Collaborative:
		return e.matrix.Load().SimilarItems(itemID, n), nil
	default:
		return nil, core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: similar items does not support "+string(algo))
	}
}
