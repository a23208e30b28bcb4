// Package boost 提供业务加权规则：按物品属性对候选分数做乘法调整。
package boost

import (
	"context"
	"time"

	"github.com/rushteam/recengine/core"
)

// Booster 返回某个候选的乘法系数，1 表示不调整。
type Booster interface {
	Name() string
	Factor(ctx context.Context, rctx *core.RecommendContext, item *core.Item, score float64) (float64, error)
}

// Apply 对候选列表执行 Booster，返回 id 与顺序不变、分数调整后的新列表。
// lookup 中不存在的物品分数保持不变。
func Apply(
	ctx context.Context,
	b Booster,
	cands []core.Candidate,
	rctx *core.RecommendContext,
	lookup core.ItemLookup,
) ([]core.Candidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}
	items, err := lookup.LookupItems(ctx, core.CandidateIDs(cands))
	if err != nil {
		return nil, err
	}
	out := make([]core.Candidate, len(cands))
	for i, c := range cands {
		out[i] = c
		it, ok := items[c.ItemID]
		if !ok || it == nil {
			continue
		}
		f, err := b.Factor(ctx, rctx, it, c.Score)
		if err != nil {
			return nil, err
		}
		out[i].Score = c.Score * f
	}
	return out, nil
}

// now 优先使用请求时间，其次使用 clock。
func now(rctx *core.RecommendContext, clock core.Clock) time.Time {
	if rctx != nil && !rctx.Now.IsZero() {
		return rctx.Now
	}
	if clock != nil {
		return clock.Now()
	}
	return time.Now()
}
