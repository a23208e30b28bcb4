package store

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/rushteam/recengine/core"
)

// BreakerConfig 是熔断器配置。
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32        // 半开状态允许的请求数，默认 1
	Interval         time.Duration // 关闭状态下计数清零周期，0 表示不清零
	Timeout          time.Duration // 打开状态持续时间，默认 30s
	FailureThreshold uint32        // 连续失败次数达到后熔断，默认 5
}

// BreakerStore 用熔断器包装另一个 Store。
//
// 熔断打开时直接返回 UNAVAILABLE，不访问后端；key 不存在不计为失败。
type BreakerStore struct {
	inner  core.Store
	cb     *gobreaker.CircuitBreaker[[]byte]
	logger zerolog.Logger
}

func NewBreakerStore(inner core.Store, cfg BreakerConfig, logger zerolog.Logger) *BreakerStore {
	if cfg.Name == "" {
		cfg.Name = "store-" + inner.Name()
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	b := &BreakerStore{inner: inner, logger: logger.With().Str("component", "breaker_store").Logger()}
	b.cb = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			b.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
		},
	})
	return b
}

func (b *BreakerStore) Name() string { return b.inner.Name() }

// State 返回当前熔断状态。
func (b *BreakerStore) State() gobreaker.State { return b.cb.State() }

func (b *BreakerStore) execute(fn func() ([]byte, error)) ([]byte, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "%s: circuit open", b.inner.Name())
	}
	return v, err
}

func (b *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return b.execute(func() ([]byte, error) { return b.inner.Get(ctx, key) })
}

func (b *BreakerStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := b.execute(func() ([]byte, error) { return nil, b.inner.Set(ctx, key, value, ttl) })
	return err
}

func (b *BreakerStore) Delete(ctx context.Context, key string) error {
	_, err := b.execute(func() ([]byte, error) { return nil, b.inner.Delete(ctx, key) })
	return err
}

func (b *BreakerStore) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	var n int
	_, err := b.execute(func() ([]byte, error) {
		var err error
		n, err = b.inner.DeletePrefix(ctx, prefix)
		return nil, err
	})
	return n, err
}

func (b *BreakerStore) BatchGet(ctx context.Context, keys []string) (map[string][]byte, error) {
	var out map[string][]byte
	_, err := b.execute(func() ([]byte, error) {
		var err error
		out, err = b.inner.BatchGet(ctx, keys)
		return nil, err
	})
	return out, err
}

func (b *BreakerStore) BatchSet(ctx context.Context, kvs map[string][]byte, ttl time.Duration) error {
	_, err := b.execute(func() ([]byte, error) { return nil, b.inner.BatchSet(ctx, kvs, ttl) })
	return err
}

func (b *BreakerStore) Close() error { return b.inner.Close() }

var _ core.Store = (*BreakerStore)(nil)
