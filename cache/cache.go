// Package cache 实现推荐结果缓存：按 (user, algorithm, top_n, 参数) 记忆最终列表，
// 并在写路径上同步失效。TTL 只是兜底，失效才是一致性的主要手段。
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/guard"
	"github.com/rushteam/recengine/pkg/metrics"
)

const DefaultKeyPrefix = "recs:"

// ItemPolicy 是物品更新时的失效策略。
type ItemPolicy string

const (
	// ItemPolicyAll 物品更新时清空全部推荐缓存（保守，默认）
	ItemPolicyAll ItemPolicy = "all"
	// ItemPolicyIndex 只删除包含该物品的缓存项，依赖进程内的 item → key 反向索引；
	// 多实例共享缓存后端时索引不完整，应使用 all。
	ItemPolicyIndex ItemPolicy = "index"
)

// ParseItemPolicy 解析物品失效策略，空值为 all。
func ParseItemPolicy(s string) (ItemPolicy, error) {
	switch ItemPolicy(s) {
	case "", ItemPolicyAll:
		return ItemPolicyAll, nil
	case ItemPolicyIndex:
		return ItemPolicyIndex, nil
	default:
		return "", core.NewConfigurationError(core.ModuleCache, "cache: unknown item invalidation policy %q", s)
	}
}

// ComputeFunc 计算一次推荐结果。
type ComputeFunc func(ctx context.Context) ([]core.Candidate, error)

// Cache 是推荐结果缓存。
type Cache struct {
	store  core.Store
	ttl    time.Duration
	prefix string
	policy ItemPolicy
	clock  core.Clock
	logger zerolog.Logger

	singleFlight bool
	sf           singleflight.Group

	gens *guard.Generations

	idxMu    sync.Mutex
	byItem   map[string]map[string]struct{} // item → keys
	keyItems map[string][]string            // key → items
}

type Option func(*Cache)

// WithTTL 设置缓存 TTL（CACHE_TTL），默认 1h；<= 0 表示不过期。
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithSingleFlight 开启按 key 合并并发计算，默认关闭：并发 miss 允许重复计算。
func WithSingleFlight(on bool) Option {
	return func(c *Cache) { c.singleFlight = on }
}

func WithItemPolicy(p ItemPolicy) Option {
	return func(c *Cache) { c.policy = p }
}

func WithKeyPrefix(p string) Option {
	return func(c *Cache) { c.prefix = p }
}

func WithClock(clock core.Clock) Option {
	return func(c *Cache) { c.clock = clock }
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

func New(store core.Store, opts ...Option) *Cache {
	c := &Cache{
		store:    store,
		ttl:      time.Hour,
		prefix:   DefaultKeyPrefix,
		policy:   ItemPolicyAll,
		clock:    core.SystemClock{},
		logger:   zerolog.Nop(),
		gens:     guard.NewGenerations(),
		byItem:   make(map[string]map[string]struct{}),
		keyItems: make(map[string][]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "rec_cache").Logger()
	return c
}

// KeyString 返回 key 在当前前缀下的存储 key。
func (c *Cache) KeyString(k Key) string { return k.format(c.prefix) }

// 物品失效（index 策略）影响所有用户的在途计算，用同一个代数 key 表示。
const itemsGen = "items"

func userGen(userID string) string { return "user:" + userID }

// GetOrCompute 命中时返回缓存列表；未命中时调用 fn，仅在成功时写入。
//
// 计算开始前对 user 代数取快照：期间发生的 InvalidateUser / InvalidateItem / InvalidateAll
// 会使本次结果只返回给调用方而不写回。缓存后端的读写错误向上透传。
func (c *Cache) GetOrCompute(ctx context.Context, k Key, fn ComputeFunc) ([]core.Candidate, error) {
	key := c.KeyString(k)
	token := c.gens.Snapshot(userGen(k.UserID), itemsGen)
	defer c.gens.Release(token)

	b, err := c.store.Get(ctx, key)
	switch {
	case err == nil:
		e, derr := decodeEntry(b)
		if derr == nil {
			metrics.RecordCacheHit(k.Algorithm)
			return e.Candidates, nil
		}
		c.logger.Warn().Err(derr).Str("key", key).Msg("drop undecodable cache entry")
	case !core.IsStoreNotFound(err):
		return nil, err
	}
	metrics.RecordCacheMiss(k.Algorithm)

	if !c.singleFlight {
		return c.compute(ctx, k, key, token, fn)
	}
	v, err, shared := c.sf.Do(key, func() (any, error) {
		return c.compute(ctx, k, key, token, fn)
	})
	if err != nil {
		return nil, err
	}
	cands := v.([]core.Candidate)
	if shared {
		cands = core.CloneCandidates(cands)
	}
	return cands, nil
}

func (c *Cache) compute(ctx context.Context, k Key, key string, token guard.Token, fn ComputeFunc) ([]core.Candidate, error) {
	cands, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	cands = core.DedupCandidates(cands)

	if !c.gens.Valid(token) {
		metrics.RecordDiscardedWrite()
		return cands, nil
	}
	payload, err := encodeEntry(Entry{Candidates: cands, ComputedAt: c.clock.Now()})
	if err != nil {
		return nil, err
	}
	c.track(key, cands)
	if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
		return nil, err
	}
	if !c.gens.Valid(token) {
		// 写入期间发生了失效，撤销写入
		metrics.RecordDiscardedWrite()
		if err := c.store.Delete(ctx, key); err != nil {
			return nil, err
		}
	}
	return core.CloneCandidates(cands), nil
}

// InvalidateUser 删除该用户的全部推荐缓存。
func (c *Cache) InvalidateUser(ctx context.Context, userID string) error {
	c.gens.Bump(userGen(userID))
	prefix := userPrefix(c.prefix, userID)
	n, err := c.store.DeletePrefix(ctx, prefix)
	if err != nil {
		return err
	}
	c.untrackPrefix(prefix)
	metrics.RecordInvalidation("user")
	c.logger.Debug().Str("user_id", userID).Int("keys", n).Msg("user recommendations invalidated")
	return nil
}

// InvalidateItem 按策略失效与物品相关的缓存：all 清空全部，index 只删除包含该物品的 key。
func (c *Cache) InvalidateItem(ctx context.Context, itemID string) error {
	if c.policy != ItemPolicyIndex {
		return c.InvalidateAll(ctx)
	}
	c.gens.Bump(itemsGen)
	keys := c.untrackItem(itemID)
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return err
		}
	}
	metrics.RecordInvalidation("item")
	c.logger.Debug().Str("item_id", itemID).Int("keys", len(keys)).Msg("item recommendations invalidated")
	return nil
}

// InvalidateAll 删除全部推荐缓存。
func (c *Cache) InvalidateAll(ctx context.Context) error {
	c.gens.BumpAll()
	n, err := c.store.DeletePrefix(ctx, c.prefix+"user:")
	if err != nil {
		return err
	}
	c.idxMu.Lock()
	c.byItem = make(map[string]map[string]struct{})
	c.keyItems = make(map[string][]string)
	c.idxMu.Unlock()
	metrics.RecordInvalidation("all")
	c.logger.Debug().Int("keys", n).Msg("all recommendations invalidated")
	return nil
}

func (c *Cache) track(key string, cands []core.Candidate) {
	if c.policy != ItemPolicyIndex {
		return
	}
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	c.untrackKeyLocked(key)
	ids := core.CandidateIDs(cands)
	c.keyItems[key] = ids
	for _, id := range ids {
		set := c.byItem[id]
		if set == nil {
			set = make(map[string]struct{})
			c.byItem[id] = set
		}
		set[key] = struct{}{}
	}
}

func (c *Cache) untrackItem(itemID string) []string {
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	keys := make([]string, 0, len(c.byItem[itemID]))
	for key := range c.byItem[itemID] {
		keys = append(keys, key)
	}
	for _, key := range keys {
		c.untrackKeyLocked(key)
	}
	return keys
}

func (c *Cache) untrackPrefix(prefix string) {
	if c.policy != ItemPolicyIndex {
		return
	}
	c.idxMu.Lock()
	defer c.idxMu.Unlock()
	for key := range c.keyItems {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			c.untrackKeyLocked(key)
		}
	}
}

func (c *Cache) untrackKeyLocked(key string) {
	for _, id := range c.keyItems[key] {
		if set := c.byItem[id]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byItem, id)
			}
		}
	}
	delete(c.keyItems, key)
}
