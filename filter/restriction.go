package filter

import (
	"context"
	"slices"

	"github.com/rushteam/recengine/core"
)

// OutOfStock 过滤缺货物品（Item.InStock=false）。
type OutOfStock struct{}

func (OutOfStock) Name() string { return "filter.out_of_stock" }

func (OutOfStock) ShouldFilter(_ context.Context, _ *core.RecommendContext, item *core.Item) (bool, error) {
	return !item.InStock, nil
}

// AgeRestricted 过滤用户年龄低于 Item.MinAge 的物品；用户年龄未知时不过滤。
// 读取 rctx.User.Age。
type AgeRestricted struct{}

func (AgeRestricted) Name() string { return "filter.age_restricted" }

func (AgeRestricted) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	if rctx == nil || rctx.User == nil || rctx.User.Age == nil {
		return false, nil
	}
	return *rctx.User.Age < item.MinAge, nil
}

// GeoRestricted 按国家过滤：AllowedCountries 非空且不含该国家，或 BlockedCountries 含该国家。
// 国家取 rctx.Country，缺省时回退到用户资料；都为空时不过滤。
type GeoRestricted struct{}

func (GeoRestricted) Name() string { return "filter.geo_restricted" }

func (GeoRestricted) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	country := rctx.EffectiveCountry()
	if country == "" {
		return false, nil
	}
	if len(item.AllowedCountries) > 0 && !slices.Contains(item.AllowedCountries, country) {
		return true, nil
	}
	return slices.Contains(item.BlockedCountries, country), nil
}
