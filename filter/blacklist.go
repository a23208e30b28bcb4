package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Blacklist 是黑名单过滤器，过滤掉黑名单中的物品。
type Blacklist struct {
	// ItemIDs 是内存中的黑名单物品 ID 列表
	ItemIDs []string

	// Store 用于从存储中读取黑名单（可选）
	Store BlacklistStore

	// Key 是 Store 中的黑名单 key（可选）
	Key string
}

// BlacklistStore 是黑名单存储接口。
type BlacklistStore interface {
	// GetBlacklist 获取黑名单物品 ID 列表
	GetBlacklist(ctx context.Context, key string) ([]string, error)
}

// NewBlacklist 创建一个黑名单过滤器。
func NewBlacklist(itemIDs []string, storeAdapter *StoreAdapter, key string) *Blacklist {
	var store BlacklistStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &Blacklist{
		ItemIDs: itemIDs,
		Store:   store,
		Key:     key,
	}
}

func (f *Blacklist) Name() string {
	return "filter.blacklist"
}

func (f *Blacklist) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}

func (f *Blacklist) Prepare(ctx context.Context, _ *core.RecommendContext) (Filter, error) {
	var stored []string
	if f.Store != nil && f.Key != "" {
		var err error
		if stored, err = f.Store.GetBlacklist(ctx, f.Key); err != nil {
			return nil, err
		}
	}
	return toIDSet(f.Name(), f.ItemIDs, stored), nil
}
