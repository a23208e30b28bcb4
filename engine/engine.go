// Package engine 是推荐核心的对外门面：打分、业务规则、特征、缓存失效、热门与写路径钩子。
//
// 数据流：交互日志 → 特征 → {协同过滤, 内容} → 混合 → 业务规则 → 推荐缓存 → 调用方。
// 写路径（RecordInteraction / UpdateItem）在写入后同步失效相关缓存。
package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/recengine/cache"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/feature"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/recall"
	"github.com/rushteam/recengine/rules"
)

// Algorithm 是打分算法名称。
type Algorithm string

const (
	Collaborative Algorithm = "collaborative"
	ContentBased  Algorithm = "content_based"
	Hybrid        Algorithm = "hybrid"
)

// ParseAlgorithm 解析算法名称，未知名称返回配置错误。
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case Collaborative, ContentBased, Hybrid:
		return Algorithm(s), nil
	default:
		return "", core.NewConfigurationError(core.ModuleEngine, "engine: unknown algorithm %q", s)
	}
}

// Config 是打分参数，对应进程级静态配置。
type Config struct {
	KNeighbors      int
	MinInteractions int
	Metric          recall.SimilarityMetric
	CFMode          recall.CFMode

	// ContentTopN 是内容一路保留的候选数下限
	ContentTopN     int
	ContentHalfLife time.Duration
	PopularFallback bool
	Corpus          recall.CorpusConfig

	HybridAlpha  float64
	HybridPolicy hybrid.Policy
	RankMode     hybrid.RankMode

	Weights core.InteractionWeights

	DiversityMaxPerCategory int

	// PoolFactor 是规则执行前的候选池倍数：池大小 = topN * PoolFactor，过滤后再截断到 topN
	PoolFactor int
}

// DefaultConfig 返回默认打分参数。
func DefaultConfig() Config {
	return Config{
		KNeighbors:              20,
		MinInteractions:         5,
		Metric:                  recall.Cosine,
		CFMode:                  recall.CFModeUser,
		ContentTopN:             10,
		HybridAlpha:             0.6,
		HybridPolicy:            hybrid.Weighted,
		RankMode:                hybrid.Reciprocal,
		Weights:                 core.DefaultInteractionWeights(),
		DiversityMaxPerCategory: 3,
		PoolFactor:              3,
	}
}

func (c Config) validate() error {
	if _, err := recall.ParseSimilarityMetric(string(c.Metric)); err != nil {
		return err
	}
	if _, err := recall.ParseCFMode(string(c.CFMode)); err != nil {
		return err
	}
	comb := hybrid.Combiner{Alpha: c.HybridAlpha, Policy: c.HybridPolicy, RankMode: c.RankMode}
	if err := comb.Validate(); err != nil {
		return err
	}
	if c.PoolFactor <= 0 {
		return core.NewConfigurationError(core.ModuleEngine, "engine: pool factor must be positive, got %d", c.PoolFactor)
	}
	return nil
}

// Engine 是推荐核心。Matrix 与 Corpus 是不可变快照，Rebuild 构建新快照后原子替换。
type Engine struct {
	entities core.EntityStore
	features *feature.Store
	recs     *cache.Cache
	rules    *rules.Engine

	cfg    Config
	clock  core.Clock
	logger zerolog.Logger

	trendingFilters bool
	featureOpts     []feature.Option
	cacheOpts       []cache.Option

	matrix      atomic.Pointer[recall.Matrix]
	corpus      atomic.Pointer[recall.Corpus]
	corpusStale atomic.Bool
	rebuildMu   sync.Mutex
}

type Option func(*Engine)

func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

func WithClock(c core.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithRules 使用外部构建的规则引擎，默认加载内置规则集。
func WithRules(r *rules.Engine) Option {
	return func(e *Engine) { e.rules = r }
}

// WithTrendingFilters 为 true 时热门列表经过过滤规则（不经过加权与重排）。
func WithTrendingFilters(on bool) Option {
	return func(e *Engine) { e.trendingFilters = on }
}

// WithFeatureOptions 追加特征存储选项（TTL、衰减参数等）。
func WithFeatureOptions(opts ...feature.Option) Option {
	return func(e *Engine) { e.featureOpts = append(e.featureOpts, opts...) }
}

// WithCacheOptions 追加推荐缓存选项（TTL、失效策略、single-flight 等）。
func WithCacheOptions(opts ...cache.Option) Option {
	return func(e *Engine) { e.cacheOpts = append(e.cacheOpts, opts...) }
}

// New 创建推荐核心。entities 是实体存储，backend 是特征与推荐结果共用的缓存后端。
// 配置非法时返回配置错误。快照在首次打分或显式 Rebuild 时构建。
func New(entities core.EntityStore, backend core.Store, opts ...Option) (*Engine, error) {
	e := &Engine{
		entities: entities,
		cfg:      DefaultConfig(),
		clock:    core.SystemClock{},
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cfg.Weights == nil {
		e.cfg.Weights = core.DefaultInteractionWeights()
	}
	if err := e.cfg.validate(); err != nil {
		return nil, err
	}

	e.features = feature.NewStore(entities, backend, append([]feature.Option{
		feature.WithClock(e.clock),
		feature.WithLogger(e.logger),
	}, e.featureOpts...)...)
	e.recs = cache.New(backend, append([]cache.Option{
		cache.WithClock(e.clock),
		cache.WithLogger(e.logger),
	}, e.cacheOpts...)...)

	if e.rules == nil {
		e.rules = rules.NewEngine(rules.WithLogger(e.logger))
		if err := e.rules.AddRules(rules.DefaultRules(rules.DefaultOptions{
			Purchases:      core.EntityPurchaseLookup(entities),
			Clock:          e.clock,
			MaxPerCategory: e.cfg.DiversityMaxPerCategory,
		})...); err != nil {
			return nil, err
		}
	}
	e.logger = e.logger.With().Str("component", "engine").Logger()
	return e, nil
}

// Rules 返回规则引擎，可在运行时增删规则。
func (e *Engine) Rules() *rules.Engine { return e.rules }

// Features 返回特征存储。
func (e *Engine) Features() *feature.Store { return e.features }

// Stats 描述当前快照状态。
type Stats struct {
	MatrixBuiltAt  time.Time `json:"matrix_built_at"`
	CorpusBuiltAt  time.Time `json:"corpus_built_at"`
	CorpusStale    bool      `json:"corpus_stale"`
	Users          int       `json:"users"`
	Items          int       `json:"items"`
	CorpusItems    int       `json:"corpus_items"`
	Vocabulary     int       `json:"vocabulary"`
	RuleSetVersion uint64    `json:"rule_set_version"`
}

func (e *Engine) Stats() Stats {
	s := Stats{CorpusStale: e.corpusStale.Load(), RuleSetVersion: e.rules.Version()}
	if m := e.matrix.Load(); m != nil {
		s.MatrixBuiltAt, s.Users, s.Items = m.BuiltAt(), m.NumUsers(), m.NumItems()
	}
	if c := e.corpus.Load(); c != nil {
		s.CorpusBuiltAt, s.CorpusItems, s.Vocabulary = c.BuiltAt(), c.Size(), c.VocabularySize()
	}
	return s
}

// Rebuild 从实体存储重建 Matrix 与 Corpus 并原子替换，随后清空推荐缓存。
// 进行中的请求继续使用旧快照。
func (e *Engine) Rebuild(ctx context.Context) error {
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	if err := e.rebuildLocked(ctx); err != nil {
		return err
	}
	return e.recs.InvalidateAll(ctx)
}

// rebuildLocked 构建并替换快照，不触碰推荐缓存。
func (e *Engine) rebuildLocked(ctx context.Context) error {
	start := e.clock.Now()
	ins, err := e.entities.AllInteractions(ctx)
	if err != nil {
		return err
	}
	items, err := e.entities.ListItems(ctx)
	if err != nil {
		return err
	}
	m := recall.BuildMatrix(ins, e.cfg.Weights, start)
	c := recall.BuildCorpus(items, e.cfg.Corpus, start)
	e.matrix.Store(m)
	e.corpus.Store(c)
	e.corpusStale.Store(false)

	e.logger.Info().
		Int("users", m.NumUsers()).
		Int("items", m.NumItems()).
		Int("corpus_items", c.Size()).
		Int("vocabulary", c.VocabularySize()).
		Msg("snapshots rebuilt")
	return nil
}

// ensureSnapshots 在首次使用时构建快照。此时缓存中不可能有基于旧快照的结果，无需失效。
func (e *Engine) ensureSnapshots(ctx context.Context) error {
	if e.matrix.Load() != nil && e.corpus.Load() != nil {
		return nil
	}
	e.rebuildMu.Lock()
	defer e.rebuildMu.Unlock()
	if e.matrix.Load() != nil && e.corpus.Load() != nil {
		return nil
	}
	return e.rebuildLocked(ctx)
}
