// Package metrics 提供推荐核心的 Prometheus 指标。
//
// 指标分类：
//   - 推荐缓存：命中/未命中、失效次数
//   - 特征：计算次数、缓存命中
//   - 规则：执行失败（错误、panic、违反输出约束）
//   - 打分：各算法耗时
//
// 使用：
//
//	metrics.RecordCacheHit("hybrid")
//	metrics.RecordRuleFailure("diversity", "panic")
//	defer metrics.ObserveScore("hybrid", time.Now())
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendCacheRequests 按算法与结果（hit/miss）统计推荐缓存访问
	RecommendCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recengine_cache_requests_total",
			Help: "Recommendation cache lookups by algorithm and outcome",
		},
		[]string{"algorithm", "outcome"},
	)

	// RecommendCacheInvalidations 按范围（user/item/all）统计失效
	RecommendCacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recengine_cache_invalidations_total",
			Help: "Recommendation cache invalidations by scope",
		},
		[]string{"scope"},
	)

	// RecommendCacheDiscardedWrites 统计因失效而放弃写回的计算结果
	RecommendCacheDiscardedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recengine_cache_discarded_writes_total",
			Help: "Computed results not written back because an invalidation happened during computation",
		},
	)

	// FeatureRequests 按实体类型与结果（hit/computed）统计特征读取
	FeatureRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recengine_feature_requests_total",
			Help: "Feature vector reads by entity kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RuleFailures 按规则与原因统计规则执行失败
	RuleFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recengine_rule_failures_total",
			Help: "Business rule executions skipped because of an error, panic or contract violation",
		},
		[]string{"rule", "reason"},
	)

	// ScoreDuration 记录各算法打分耗时
	ScoreDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recengine_score_duration_seconds",
			Help:    "Duration of score calls by algorithm",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"algorithm"},
	)
)

func RecordCacheHit(algorithm string) {
	RecommendCacheRequests.WithLabelValues(algorithm, "hit").Inc()
}

func RecordCacheMiss(algorithm string) {
	RecommendCacheRequests.WithLabelValues(algorithm, "miss").Inc()
}

func RecordInvalidation(scope string) {
	RecommendCacheInvalidations.WithLabelValues(scope).Inc()
}

func RecordDiscardedWrite() {
	RecommendCacheDiscardedWrites.Inc()
}

func RecordFeatureHit(kind string) {
	FeatureRequests.WithLabelValues(kind, "hit").Inc()
}

func RecordFeatureComputed(kind string) {
	FeatureRequests.WithLabelValues(kind, "computed").Inc()
}

func RecordRuleFailure(rule, reason string) {
	RuleFailures.WithLabelValues(rule, reason).Inc()
}

// ObserveScore 记录从 start 到现在的打分耗时。
func ObserveScore(algorithm string, start time.Time) {
	ScoreDuration.WithLabelValues(algorithm).Observe(time.Since(start).Seconds())
}
