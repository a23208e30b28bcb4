package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// UserBlock 是用户拉黑过滤器，过滤掉用户拉黑的物品。
type UserBlock struct {
	// Store 用于从存储中读取用户拉黑列表
	Store UserBlockStore

	// KeyPrefix 是 Store 中的 key 前缀，实际 key 为 {KeyPrefix}:{UserID}，默认 "user:block"
	KeyPrefix string
}

// UserBlockStore 是用户拉黑存储接口。
type UserBlockStore interface {
	// GetUserBlocks 获取用户拉黑的物品 ID 列表
	GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]string, error)
}

// NewUserBlock 创建一个用户拉黑过滤器。
func NewUserBlock(storeAdapter *StoreAdapter, keyPrefix string) *UserBlock {
	var store UserBlockStore
	if storeAdapter != nil {
		store = storeAdapter
	}
	return &UserBlock{
		Store:     store,
		KeyPrefix: keyPrefix,
	}
}

func (f *UserBlock) Name() string {
	return "filter.user_block"
}

func (f *UserBlock) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	prepared, err := f.Prepare(ctx, rctx)
	if err != nil {
		return false, err
	}
	return prepared.ShouldFilter(ctx, rctx, item)
}

func (f *UserBlock) Prepare(ctx context.Context, rctx *core.RecommendContext) (Filter, error) {
	if f.Store == nil || rctx == nil || rctx.UserID == "" {
		return toIDSet(f.Name()), nil
	}
	keyPrefix := f.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "user:block"
	}
	blocked, err := f.Store.GetUserBlocks(ctx, rctx.UserID, keyPrefix)
	if err != nil {
		return nil, err
	}
	return toIDSet(f.Name(), blocked), nil
}
