package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Chain 组合多个过滤器：任何一个返回 true，该物品就会被过滤掉。
type Chain struct {
	ChainName string
	Filters   []Filter
}

func (c *Chain) Name() string {
	if c.ChainName != "" {
		return c.ChainName
	}
	return "filter.chain"
}

func (c *Chain) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	for _, f := range c.Filters {
		drop, err := f.ShouldFilter(ctx, rctx, item)
		if err != nil {
			return false, err
		}
		if drop {
			return true, nil
		}
	}
	return false, nil
}

// Prepare 为链中实现了 Preparer 的过滤器预取数据。
func (c *Chain) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	prepared := make([]Filter, len(c.Filters))
	for i, f := range c.Filters {
		if p, ok := f.(Preparer); ok {
			pf, err := p.Prepare(ctx, rctx)
			if err != nil {
				return nil, err
			}
			f = pf
		}
		prepared[i] = f
	}
	return &Chain{ChainName: c.ChainName, Filters: prepared}, nil
}
