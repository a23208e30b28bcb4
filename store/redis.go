package store

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rushteam/recengine/core"
)

// RedisStore 是 Redis 实现的 Store，多实例共享缓存时使用。
// 网络/服务端错误统一映射为 UNAVAILABLE，不在存储层重试。
type RedisStore struct {
	client    redis.UniversalClient
	scanCount int64
}

// RedisConfig 是 Redis 连接配置。
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	// ScanCount 是前缀删除时每次 SCAN 的 COUNT，默认 500
	ScanCount int64
}

func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, core.NewUnavailableError(core.ModuleStore, err, "redis: ping %s", cfg.Addr)
	}
	return NewRedisStoreFromClient(client, cfg.ScanCount), nil
}

// NewRedisStoreFromClient 使用已有客户端（单机、集群、哨兵均可）。
func NewRedisStoreFromClient(client redis.UniversalClient, scanCount int64) *RedisStore {
	if scanCount <= 0 {
		scanCount = 500
	}
	return &RedisStore{client: client, scanCount: scanCount}
}

func (r *RedisStore) Name() string { return "redis" }

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, core.ErrStoreNotFound
	}
	if err != nil {
		return nil, unavailable(err, "redis: get %s", key)
	}
	return val, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable(err, "redis: set %s", key)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return unavailable(err, "redis: del %s", key)
	}
	return nil
}

// DeletePrefix 通过 SCAN MATCH prefix* 分批删除，避免 KEYS 阻塞服务端。
func (r *RedisStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var (
		cursor uint64
		total  int
	)
	match := escapeGlob(prefix) + "*"
	for {
		keys, next, err := r.client.Scan(ctx, cursor, match, r.scanCount).Result()
		if err != nil {
			return total, unavailable(err, "redis: scan %s", match)
		}
		if len(keys) > 0 {
			n, err := r.client.Del(ctx, keys...).Result()
			if err != nil {
				return total, unavailable(err, "redis: del %d keys", len(keys))
			}
			total += int(n)
		}
		cursor = next
		if cursor == 0 {
			return total, nil
		}
	}
}

func (r *RedisStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return make(map[string][]byte), nil
	}

	vals, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, unavailable(err, "redis: mget %d keys", len(keys))
	}

	result := make(map[string][]byte, len(keys))
	for i, k := range keys {
		if s, ok := vals[i].(string); ok {
			result[k] = []byte(s)
		}
	}
	return result, nil
}

func (r *RedisStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error {
	if len(kvs) == 0 {
		return nil
	}
	if ttl < 0 {
		ttl = 0
	}
	pipe := r.client.Pipeline()
	for k, v := range kvs {
		pipe.Set(ctx, k, v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return unavailable(err, "redis: pipeline set %d keys", len(kvs))
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func unavailable(err error, format string, args ...any) error {
	return core.NewUnavailableError(core.ModuleStore, err, format, args...)
}

// escapeGlob 转义 SCAN MATCH 模式中的特殊字符。
func escapeGlob(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}

var _ core.Store = (*RedisStore)(nil)
