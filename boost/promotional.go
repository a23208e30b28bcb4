package boost

import (
	"context"
	"time"

	"github.com/rushteam/recengine/core"
)

// Promotional 对促销中的物品加权（默认 ×1.5）；PromoEndsAt 已过的促销不再加权。
type Promotional struct {
	BoostFactor float64
	Clock       core.Clock
}

func (b *Promotional) Name() string { return "boost.promotional" }

func (b *Promotional) Factor(_ context.Context, rctx *core.RecommendContext, item *core.Item, _ float64) (float64, error) {
	if !item.Promotional {
		return 1, nil
	}
	if item.PromoEndsAt != nil && now(rctx, b.Clock).After(*item.PromoEndsAt) {
		return 1, nil
	}
	if b.BoostFactor <= 0 {
		return 1.5, nil
	}
	return b.BoostFactor, nil
}

// NewItems 对 Window（默认 7 天）内上架的物品加权（默认 ×1.3）。
type NewItems struct {
	Window      time.Duration
	BoostFactor float64
	Clock       core.Clock
}

func (b *NewItems) Name() string { return "boost.new_items" }

func (b *NewItems) Factor(_ context.Context, rctx *core.RecommendContext, item *core.Item, _ float64) (float64, error) {
	if item.CreatedAt.IsZero() {
		return 1, nil
	}
	window := b.Window
	if window <= 0 {
		window = 7 * 24 * time.Hour
	}
	if item.CreatedAt.Before(now(rctx, b.Clock).Add(-window)) {
		return 1, nil
	}
	if b.BoostFactor <= 0 {
		return 1.3, nil
	}
	return b.BoostFactor, nil
}
