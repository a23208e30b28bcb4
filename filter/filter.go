package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Filter 是过滤器的抽象接口，用于判断一个 Item 是否应该被过滤掉。
// 返回 true 表示应该过滤（移除），false 表示保留。
type Filter interface {
	// Name 返回过滤器名称
	Name() string

	// ShouldFilter 判断 item 是否应该被过滤
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Preparer 由需要按请求预取数据的过滤器实现（已购集合、拉黑列表等），
// 返回绑定到本次请求的 Filter，避免逐个物品访问存储。
type Preparer interface {
	Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error)
}

// Apply 对候选列表执行过滤器，保留幸存者的相对顺序。
// lookup 中不存在的物品一律移除。
func Apply(
	ctx context.Context,
	f Filter,
	cands []core.Candidate,
	rctx *core.RecommendContext,
	lookup core.ItemLookup,
) ([]core.Candidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}
	if p, ok := f.(Preparer); ok {
		prepared, err := p.Prepare(ctx, rctx)
		if err != nil {
			return nil, err
		}
		f = prepared
	}
	items, err := lookup.LookupItems(ctx, core.CandidateIDs(cands))
	if err != nil {
		return nil, err
	}

	out := make([]core.Candidate, 0, len(cands))
	for _, c := range cands {
		it, ok := items[c.ItemID]
		if !ok || it == nil {
			continue
		}
		drop, err := f.ShouldFilter(ctx, rctx, it)
		if err != nil {
			return nil, err
		}
		if !drop {
			out = append(out, c)
		}
	}
	return out, nil
}

// Func 把普通函数适配为 Filter。
type Func struct {
	FilterName string
	Fn         func(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

func (f Func) Name() string { return f.FilterName }

func (f Func) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(ctx, rctx, item)
}
