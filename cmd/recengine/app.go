package main

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"github.com/rushteam/recengine/cache"
	"github.com/rushteam/recengine/config"
	_ "github.com/rushteam/recengine/config/builders"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/engine"
	"github.com/rushteam/recengine/feature"
	"github.com/rushteam/recengine/hybrid"
	"github.com/rushteam/recengine/pipeline"
	"github.com/rushteam/recengine/recall"
	"github.com/rushteam/recengine/store"
)

// app 持有一次命令执行所需的全部组件。
type app struct {
	settings *config.Settings
	logger   zerolog.Logger
	entities *store.SQLEntityStore
	backend  core.Store
	engine   *engine.Engine
}

// engineConfig 把进程配置映射为打分参数。settings 已通过 Validate。
func engineConfig(s *config.Settings) (engine.Config, error) {
	cfg := engine.DefaultConfig()
	cfg.KNeighbors = s.CollaborativeKNeighbors
	cfg.MinInteractions = s.MinInteractions
	cfg.ContentTopN = s.ContentTopN
	cfg.HybridAlpha = s.HybridAlpha
	cfg.DiversityMaxPerCategory = s.DiversityMaxPerCategory

	var err error
	if cfg.Metric, err = recall.ParseSimilarityMetric(s.CollaborativeMetric); err != nil {
		return cfg, err
	}
	if cfg.CFMode, err = recall.ParseCFMode(s.CFMode); err != nil {
		return cfg, err
	}
	if cfg.HybridPolicy, err = hybrid.ParsePolicy(s.HybridPolicy); err != nil {
		return cfg, err
	}
	if cfg.Weights, err = s.Weights(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func newBackend(ctx context.Context, s *config.Settings, logger zerolog.Logger) (core.Store, error) {
	if s.Cache.Backend != "redis" {
		return store.NewMemoryStore(), nil
	}
	rs, err := store.NewRedisStore(ctx, store.RedisConfig{
		Addr:     s.Redis.Addr,
		Password: s.Redis.Password,
		DB:       s.Redis.DB,
	})
	if err != nil {
		return nil, err
	}
	if !s.Redis.Breaker {
		return rs, nil
	}
	return store.NewBreakerStore(rs, store.BreakerConfig{}, logger), nil
}

func newApp(ctx context.Context, s *config.Settings) (*app, error) {
	a := &app{settings: s, logger: s.Logger()}

	cfg, err := engineConfig(s)
	if err != nil {
		return nil, err
	}
	policy, err := cache.ParseItemPolicy(s.Cache.ItemPolicy)
	if err != nil {
		return nil, err
	}

	if a.entities, err = store.OpenSQLEntityStore(ctx, s.Database.Path); err != nil {
		return nil, err
	}
	if a.backend, err = newBackend(ctx, s, a.logger); err != nil {
		a.Close()
		return nil, err
	}

	params := feature.DefaultParams()
	params.DecayDays = s.FeatureDecayDays
	a.engine, err = engine.New(a.entities, a.backend,
		engine.WithConfig(cfg),
		engine.WithLogger(a.logger),
		engine.WithFeatureOptions(feature.WithTTL(s.FeatureCacheTTL), feature.WithParams(params)),
		engine.WithCacheOptions(
			cache.WithTTL(s.CacheTTL),
			cache.WithItemPolicy(policy),
			cache.WithSingleFlight(s.Cache.SingleFlight),
		),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	if s.Rules.File != "" {
		deps := pipeline.Deps{
			Store:     a.backend,
			Purchases: core.EntityPurchaseLookup(a.entities),
			Clock:     core.SystemClock{},
		}
		if err := config.InstallRules(a.engine.Rules(), s.Rules.File, deps); err != nil {
			a.Close()
			return nil, err
		}
		a.logger.Info().Str("file", s.Rules.File).Uint64("version", a.engine.Rules().Version()).Msg("rules loaded")
	}
	return a, nil
}

func (a *app) Close() {
	var closers []io.Closer
	if a.backend != nil {
		closers = append(closers, a.backend)
	}
	if a.entities != nil {
		closers = append(closers, a.entities)
	}
	for _, c := range closers {
		if err := c.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("close")
		}
	}
}
