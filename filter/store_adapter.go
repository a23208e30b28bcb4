package filter

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recengine/core"
)

// StoreAdapter 将 core.Store 适配为过滤器所需的存储接口。
// 列表以 JSON 字符串数组存储；key 不存在视为空列表。
type StoreAdapter struct {
	store core.Store
}

// NewStoreAdapter 创建一个 core.Store 适配器。
func NewStoreAdapter(s core.Store) *StoreAdapter {
	return &StoreAdapter{store: s}
}

// GetBlacklist 从 Store 读取黑名单。
func (a *StoreAdapter) GetBlacklist(ctx context.Context, key string) ([]string, error) {
	data, err := a.store.Get(ctx, key)
	if err != nil {
		if core.IsStoreNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, core.WrapDomainError(core.ModuleStore, core.ErrorCodeInternalError, err, "filter: decode list %q", key)
	}
	return ids, nil
}

// GetUserBlocks 从 Store 读取用户拉黑列表，key 为 {keyPrefix}:{userID}。
func (a *StoreAdapter) GetUserBlocks(ctx context.Context, userID string, keyPrefix string) ([]string, error) {
	return a.GetBlacklist(ctx, keyPrefix+":"+userID)
}

// PutList 写入一个 id 列表，ttl <= 0 表示不过期。
func (a *StoreAdapter) PutList(ctx context.Context, key string, ids []string, ttl time.Duration) error {
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return a.store.Set(ctx, key, data, ttl)
}
