package recall

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/rushteam/recengine/core"
)

// ContentRecall 是基于内容的召回源（Content-based）。
//
// 用户画像 = 交互过物品的 TF-IDF 向量的加权质心，权重 = 交互权重 × 可选的时间衰减 exp(-age/HalfLife)；
// 同一物品多次交互取最大权重。候选分 = cosine(画像, 物品向量)，
// 只保留分数为正、未交互过的物品，按分数降序、item id 升序取前 TopN。
type ContentRecall struct {
	Corpus   func() *Corpus
	Entities core.EntityStore

	// Weights 交互类型默认权重，为空使用 core.DefaultInteractionWeights
	Weights core.InteractionWeights

	// HalfLife 大于 0 时对旧交互做指数衰减
	HalfLife time.Duration

	Clock core.Clock

	// TopN 是 CONTENT_TOP_N，默认 10
	TopN int

	IncludeInteracted bool

	// PopularFallback 为 true 时，无历史的用户返回按热度排序的物品
	PopularFallback bool
}

func (r *ContentRecall) Name() string { return "recall.content" }

func (r *ContentRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]core.Candidate, error) {
	if rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	topN := r.TopN
	if topN <= 0 {
		topN = 10
	}
	return r.Score(ctx, rctx.UserID, topN)
}

// Score 对用户打分，topN <= 0 表示不截断。
func (r *ContentRecall) Score(ctx context.Context, userID string, topN int) ([]core.Candidate, error) {
	c := r.corpus()
	if c == nil || r.Entities == nil {
		return nil, nil
	}
	ins, err := r.Entities.InteractionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ins) == 0 {
		if r.PopularFallback {
			return r.popular(ctx, topN)
		}
		return nil, nil
	}

	weights := r.itemWeights(ins)
	profile := c.Profile(weights)
	if len(profile) == 0 {
		return nil, nil
	}
	pnorm := math.Sqrt(dot(profile, profile))

	out := make([]core.Candidate, 0)
	for _, id := range c.ids {
		if !r.IncludeInteracted {
			if _, seen := weights[id]; seen {
				continue
			}
		}
		s := dot(profile, c.vectors[id]) / pnorm
		if s > 0 {
			out = append(out, core.Candidate{ItemID: id, Score: s})
		}
	}
	core.SortCandidates(out)
	return core.TruncateCandidates(out, topN), nil
}

// RecallByCategory 返回指定类目内的内容推荐：先取 5*topN 候选再按类目过滤。
func (r *ContentRecall) RecallByCategory(ctx context.Context, userID, category string, topN int) ([]core.Candidate, error) {
	if topN <= 0 {
		topN = 10
	}
	c := r.corpus()
	if c == nil {
		return nil, nil
	}
	all, err := r.Score(ctx, userID, topN*5)
	if err != nil {
		return nil, err
	}
	out := make([]core.Candidate, 0, topN)
	for _, cand := range all {
		if c.Category(cand.ItemID) == category {
			out = append(out, cand)
			if len(out) == topN {
				break
			}
		}
	}
	return out, nil
}

// Profile 计算加权质心；weights 为 itemID → 权重，无向量的物品被忽略。
func (c *Corpus) Profile(weights map[string]float64) map[string]float64 {
	ids := make([]string, 0, len(weights))
	for id := range weights {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	profile := make(map[string]float64)
	var wsum float64
	for _, id := range ids {
		vec, ok := c.vectors[id]
		w := weights[id]
		if !ok || w <= 0 {
			continue
		}
		wsum += w
		for t, x := range vec {
			profile[t] += w * x
		}
	}
	if wsum == 0 {
		return nil
	}
	for t := range profile {
		profile[t] /= wsum
	}
	return profile
}

func (r *ContentRecall) corpus() *Corpus {
	if r.Corpus == nil {
		return nil
	}
	return r.Corpus()
}

func (r *ContentRecall) itemWeights(ins []core.Interaction) map[string]float64 {
	weights := r.Weights
	if weights == nil {
		weights = core.DefaultInteractionWeights()
	}
	var now time.Time
	if r.HalfLife > 0 {
		clock := r.Clock
		if clock == nil {
			clock = core.SystemClock{}
		}
		now = clock.Now()
	}
	out := make(map[string]float64)
	for _, in := range ins {
		w := weights.Value(in)
		if r.HalfLife > 0 {
			age := now.Sub(in.Timestamp)
			if age < 0 {
				age = 0
			}
			w *= math.Exp(-float64(age) / float64(r.HalfLife))
		}
		if w > out[in.ItemID] {
			out[in.ItemID] = w
		}
	}
	return out
}

func (r *ContentRecall) popular(ctx context.Context, topN int) ([]core.Candidate, error) {
	items, err := r.Entities.ListItems(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Candidate, 0, len(items))
	for _, it := range items {
		if it.Popularity > 0 {
			out = append(out, core.Candidate{ItemID: it.ID, Score: it.Popularity})
		}
	}
	core.SortCandidates(out)
	return core.TruncateCandidates(out, topN), nil
}
