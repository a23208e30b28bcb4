package boost

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Preferences 对匹配用户喜好的物品加权：类目命中 ×CategoryFactor（默认 1.4），
// 标签命中 ×TagFactor（默认 1.2），两者可叠加。读取 rctx.User。
type Preferences struct {
	CategoryFactor float64
	TagFactor      float64
}

func (b *Preferences) Name() string { return "boost.preferences" }

func (b *Preferences) Factor(_ context.Context, rctx *core.RecommendContext, item *core.Item, _ float64) (float64, error) {
	if rctx == nil || rctx.User == nil {
		return 1, nil
	}
	catFactor, tagFactor := b.CategoryFactor, b.TagFactor
	if catFactor <= 0 {
		catFactor = 1.4
	}
	if tagFactor <= 0 {
		tagFactor = 1.2
	}
	f := 1.0
	if rctx.User.LikesCategory(item.Category) {
		f *= catFactor
	}
	if rctx.User.LikesAnyTag(item.Tags) {
		f *= tagFactor
	}
	return f, nil
}
