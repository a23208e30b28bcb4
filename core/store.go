package core

import (
	"context"
	"time"
)

// Store 是缓存后端的领域接口。
//
// 定义在领域层（core），由基础设施层（store）实现：
//   - store.MemoryStore：进程内实现，测试与单机部署
//   - store.RedisStore：共享缓存
//   - store.BreakerStore：熔断包装，后端故障时快速失败
//
// 使用场景：
//   - 特征缓存：用户/物品/用户-物品对特征
//   - 结果缓存：推荐列表
type Store interface {
	// Name 返回存储后端名称（用于日志/监控）
	Name() string

	// Get 读取单个 key 的值，不存在返回 ErrStoreNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set 写入单个 key-value，ttl <= 0 表示不过期
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete 删除单个 key，不存在不报错
	Delete(ctx context.Context, key string) error

	// DeletePrefix 删除所有以 prefix 开头的 key，返回删除数量
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// BatchGet 批量读取，不存在的 key 不出现在结果中
	BatchGet(ctx context.Context, keys []string) (map[string][]byte, error)

	// BatchSet 批量写入
	BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error

	// Close 关闭连接/释放资源
	Close() error
}

// Store 错误定义（使用统一的 DomainError）
var (
	// ErrStoreNotFound 表示 key 不存在
	ErrStoreNotFound = NewDomainError(ModuleStore, ErrorCodeNotFound, "store: key not found")

	// ErrStoreNotSupported 表示操作不支持
	ErrStoreNotSupported = NewDomainError(ModuleStore, ErrorCodeNotSupported, "store: operation not supported")
)

// IsStoreNotFound 检查错误是否为 key 不存在
func IsStoreNotFound(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Module == ModuleStore && domainErr.Code == ErrorCodeNotFound
}
