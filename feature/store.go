package feature

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/guard"
	"github.com/rushteam/recengine/pkg/metrics"
)

// Store 是特征存储：从实体存储计算特征，并缓存到缓存后端。
//
// 缓存 key：
//   - features:user:{user_id}
//   - features:item:{item_id}
//   - features:pair:{user_id}:{item_id}
//
// 失效同步执行：先递增代数，再删除缓存；失效前开始的计算不会写回。
type Store struct {
	entities core.EntityStore
	cache    core.Store

	ttl         time.Duration
	pairTTL     time.Duration
	params      Params
	clock       core.Clock
	logger      zerolog.Logger
	prefix      string
	concurrency int

	gens *guard.Generations
}

// Option 是特征存储的配置选项，采用函数式选项模式。
type Option func(*Store)

// WithTTL 设置特征缓存 TTL；用户-物品对特征 TTL 为 min(ttl, 5m)。
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

// WithParams 设置特征计算参数。
func WithParams(p Params) Option {
	return func(s *Store) { s.params = p }
}

func WithClock(c core.Clock) Option {
	return func(s *Store) { s.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithKeyPrefix 设置缓存 key 前缀，默认 "features:"。
func WithKeyPrefix(p string) Option {
	return func(s *Store) { s.prefix = p }
}

// WithConcurrency 设置批量计算的并发度，默认 8。
func WithConcurrency(n int) Option {
	return func(s *Store) { s.concurrency = n }
}

const maxPairTTL = 5 * time.Minute

func NewStore(entities core.EntityStore, cache core.Store, opts ...Option) *Store {
	s := &Store{
		entities:    entities,
		cache:       cache,
		ttl:         time.Hour,
		params:      DefaultParams(),
		clock:       core.SystemClock{},
		logger:      zerolog.Nop(),
		prefix:      "features:",
		concurrency: 8,
		gens:        guard.NewGenerations(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.params = s.params.withDefaults()
	s.pairTTL = s.ttl
	if s.pairTTL <= 0 || s.pairTTL > maxPairTTL {
		s.pairTTL = maxPairTTL
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	s.logger = s.logger.With().Str("component", "feature_store").Logger()
	return s
}

func (s *Store) userKey(id string) string { return s.prefix + "user:" + id }
func (s *Store) itemKey(id string) string { return s.prefix + "item:" + id }
func (s *Store) pairPrefix() string       { return s.prefix + "pair:" }
func (s *Store) pairUserPrefix(userID string) string {
	return s.pairPrefix() + userID + ":"
}
func (s *Store) pairKey(userID, itemID string) string {
	return s.pairUserPrefix(userID) + itemID
}

func (s *Store) GetUserFeatures(ctx context.Context, userID string) (*Vector, error) {
	key := s.userKey(userID)
	return s.getOrCompute(ctx, core.EntityUser, key, s.ttl, []string{key}, func() (*Vector, error) {
		return s.computeUser(ctx, userID)
	})
}

func (s *Store) GetItemFeatures(ctx context.Context, itemID string) (*Vector, error) {
	key := s.itemKey(itemID)
	return s.getOrCompute(ctx, core.EntityItem, key, s.ttl, []string{key}, func() (*Vector, error) {
		return s.computeItem(ctx, itemID)
	})
}

// GetPairFeatures 返回用户-物品对特征，依赖用户与物品特征。
func (s *Store) GetPairFeatures(ctx context.Context, userID, itemID string) (*Vector, error) {
	key := s.pairKey(userID, itemID)
	deps := []string{s.userKey(userID), s.itemKey(itemID)}
	return s.getOrCompute(ctx, core.EntityPair, key, s.pairTTL, deps, func() (*Vector, error) {
		uf, err := s.GetUserFeatures(ctx, userID)
		if err != nil {
			return nil, err
		}
		itf, err := s.GetItemFeatures(ctx, itemID)
		if err != nil {
			return nil, err
		}
		ins, err := s.entities.InteractionsByUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		var pairIns []core.Interaction
		for _, in := range ins {
			if in.ItemID == itemID {
				pairIns = append(pairIns, in)
			}
		}
		return ComputePairFeatures(uf, itf, pairIns, s.clock.Now()), nil
	})
}

// BatchGetUserFeatures 与逐个调用 GetUserFeatures 语义一致，并发计算。
// 任一 id 失败（包括不存在）时整体返回该错误。
func (s *Store) BatchGetUserFeatures(ctx context.Context, userIDs []string) (map[string]*Vector, error) {
	return batch(ctx, s.concurrency, userIDs, s.GetUserFeatures)
}

// BatchGetItemFeatures 与逐个调用 GetItemFeatures 语义一致，并发计算。
func (s *Store) BatchGetItemFeatures(ctx context.Context, itemIDs []string) (map[string]*Vector, error) {
	return batch(ctx, s.concurrency, itemIDs, s.GetItemFeatures)
}

// BatchGetPairFeatures 与逐个调用 GetPairFeatures 语义一致，重复的 pair 只计算一次。
func (s *Store) BatchGetPairFeatures(ctx context.Context, pairs []core.FeaturePair) (map[core.FeaturePair]*Vector, error) {
	return batch(ctx, s.concurrency, pairs, func(ctx context.Context, p core.FeaturePair) (*Vector, error) {
		return s.GetPairFeatures(ctx, p.UserID, p.ItemID)
	})
}

func batch[K comparable](ctx context.Context, limit int, ids []K, get func(context.Context, K) (*Vector, error)) (map[K]*Vector, error) {
	result := make(map[K]*Vector, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	seen := make(map[K]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		g.Go(func() error {
			v, err := get(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			result[id] = v
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return result, nil
}

// InvalidateUserFeatures 删除用户特征以及该用户的全部用户-物品对特征。
func (s *Store) InvalidateUserFeatures(ctx context.Context, userID string) error {
	key := s.userKey(userID)
	s.gens.Bump(key)
	if err := s.cache.Delete(ctx, key); err != nil {
		return err
	}
	n, err := s.cache.DeletePrefix(ctx, s.pairUserPrefix(userID))
	if err != nil {
		return err
	}
	s.logger.Debug().Str("user_id", userID).Int("pairs", n).Msg("user features invalidated")
	return nil
}

// InvalidateItemFeatures 删除物品特征；用户-物品对特征按 user 组织，这里整体删除（TTL 最长 5 分钟）。
func (s *Store) InvalidateItemFeatures(ctx context.Context, itemID string) error {
	key := s.itemKey(itemID)
	s.gens.Bump(key)
	if err := s.cache.Delete(ctx, key); err != nil {
		return err
	}
	n, err := s.cache.DeletePrefix(ctx, s.pairPrefix())
	if err != nil {
		return err
	}
	s.logger.Debug().Str("item_id", itemID).Int("pairs", n).Msg("item features invalidated")
	return nil
}

func (s *Store) InvalidateAll(ctx context.Context) error {
	s.gens.BumpAll()
	n, err := s.cache.DeletePrefix(ctx, s.prefix)
	if err != nil {
		return err
	}
	s.logger.Debug().Int("keys", n).Msg("all features invalidated")
	return nil
}

func (s *Store) getOrCompute(ctx context.Context, kind core.EntityKind, key string, ttl time.Duration, deps []string, compute func() (*Vector, error)) (*Vector, error) {
	token := s.gens.Snapshot(deps...)
	defer s.gens.Release(token)

	b, err := s.cache.Get(ctx, key)
	switch {
	case err == nil:
		v, derr := decodeVector(b)
		if derr == nil {
			metrics.RecordFeatureHit(string(kind))
			return v, nil
		}
		s.logger.Warn().Err(derr).Str("key", key).Msg("drop undecodable feature entry")
	case !core.IsStoreNotFound(err):
		return nil, err
	}

	v, err := compute()
	if err != nil {
		return nil, err
	}
	metrics.RecordFeatureComputed(string(kind))

	if !s.gens.Valid(token) {
		metrics.RecordDiscardedWrite()
		return v, nil
	}
	payload, err := encodeVector(v)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, key, payload, ttl); err != nil {
		return nil, err
	}
	if !s.gens.Valid(token) {
		// 写入期间发生了失效，撤销写入
		metrics.RecordDiscardedWrite()
		if err := s.cache.Delete(ctx, key); err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (s *Store) computeUser(ctx context.Context, userID string) (*Vector, error) {
	user, err := s.entities.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ins, err := s.entities.InteractionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(ins))
	seen := make(map[string]struct{}, len(ins))
	for _, in := range ins {
		if _, ok := seen[in.ItemID]; !ok {
			seen[in.ItemID] = struct{}{}
			ids = append(ids, in.ItemID)
		}
	}
	items, err := s.entities.GetItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	categories := make(map[string]string, len(items))
	for id, it := range items {
		categories[id] = it.Category
	}
	return ComputeUserFeatures(userID, user, ins, categories, s.clock.Now(), s.params), nil
}

func (s *Store) computeItem(ctx context.Context, itemID string) (*Vector, error) {
	item, err := s.entities.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	ins, err := s.entities.InteractionsByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return ComputeItemFeatures(itemID, item, ins, s.clock.Now(), s.params), nil
}

var _ core.FeatureService = (*Store)(nil)
