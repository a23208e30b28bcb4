package recall

import (
	"context"
	"sort"
	"time"

	"github.com/rushteam/recengine/core"
)

// Trending 是热门召回源：统计时间窗口 (now-window, now] 内的加权交互数。
//
// 权重按交互类型（purchase 5 > rating 3 > click 2 > view 1，可配置），与评分值无关；
// 分数相同按原始交互数降序，再按 item id 升序。不做个性化。
type Trending struct {
	Entities core.EntityStore
	Weights  core.InteractionWeights
	Clock    core.Clock

	// Window 默认 24h，Limit 默认 10
	Window time.Duration
	Limit  int
}

func (r *Trending) Name() string { return "recall.trending" }

// Recall 实现 Source 接口，使用默认窗口与数量。
func (r *Trending) Recall(ctx context.Context, _ *core.RecommendContext) ([]core.Candidate, error) {
	window, limit := r.Window, r.Limit
	if window <= 0 {
		window = 24 * time.Hour
	}
	if limit <= 0 {
		limit = 10
	}
	return r.Top(ctx, window, limit)
}

// Top 返回窗口内的热门物品，limit <= 0 不截断。
func (r *Trending) Top(ctx context.Context, window time.Duration, limit int) ([]core.Candidate, error) {
	if window <= 0 {
		return nil, core.NewDomainError(core.ModuleRecall, core.ErrorCodeInvalidInput, "recall: trending window must be positive")
	}
	clock := r.Clock
	if clock == nil {
		clock = core.SystemClock{}
	}
	now := clock.Now()
	ins, err := r.Entities.InteractionsBetween(ctx, now.Add(-window), now)
	if err != nil {
		return nil, err
	}
	return core.TruncateCandidates(RankTrending(ins, r.Weights), limit), nil
}

// RankTrending 对一组交互按加权次数排名，是纯函数。
func RankTrending(ins []core.Interaction, weights core.InteractionWeights) []core.Candidate {
	if weights == nil {
		weights = core.DefaultInteractionWeights()
	}
	score := make(map[string]float64)
	count := make(map[string]int)
	for _, in := range ins {
		score[in.ItemID] += weights.Of(in.Type)
		count[in.ItemID]++
	}
	out := make([]core.Candidate, 0, len(score))
	for id, s := range score {
		out = append(out, core.Candidate{ItemID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if count[a.ItemID] != count[b.ItemID] {
			return count[a.ItemID] > count[b.ItemID]
		}
		return a.ItemID < b.ItemID
	})
	return out
}
