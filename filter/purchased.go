package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Purchased 过滤用户已购买的物品，已购集合在 Prepare 时一次性读取。
type Purchased struct {
	Lookup core.PurchaseLookup
}

func (f *Purchased) Name() string { return "filter.purchased" }

// ShouldFilter 未经 Prepare 直接调用时逐个查询。
func (f *Purchased) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}

func (f *Purchased) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	if f.Lookup == nil || rctx == nil || rctx.UserID == "" {
		return idSet{name: f.Name()}, nil
	}
	ids, err := f.Lookup.PurchasedItems(ctx, rctx.UserID)
	if err != nil {
		return nil, err
	}
	return idSet{name: f.Name(), ids: ids}, nil
}

// idSet 是按 item id 集合过滤的请求级过滤器。
type idSet struct {
	name string
	ids  map[string]struct{}
}

func (s idSet) Name() string { return s.name }

func (s idSet) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	_, ok := s.ids[item.ID]
	return ok, nil
}

func toIDSet(name string, ids ...[]string) idSet {
	set := make(map[string]struct{})
	for _, list := range ids {
		for _, id := range list {
			set[id] = struct{}{}
		}
	}
	return idSet{name: name, ids: set}
}
