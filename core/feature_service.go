package core

import (
	"context"
	"time"
)

// EntityKind 标识特征向量所属实体。
type EntityKind string

const (
	EntityUser EntityKind = "user"
	EntityItem EntityKind = "item"
	EntityPair EntityKind = "pair"
)

// FeatureVector 是某个实体派生出的特征：数值特征 + 类别特征。
//
// 特征只由实体数据与交互日志决定，可随时重新计算，缓存仅用于加速。
type FeatureVector struct {
	EntityKind  EntityKind          `json:"entity_kind"`
	EntityID    string              `json:"entity_id"`
	Numeric     map[string]float64  `json:"numeric"`
	Categorical map[string][]string `json:"categorical,omitempty"`
	ComputedAt  time.Time           `json:"computed_at"`
}

// NewFeatureVector 创建空特征向量。
func NewFeatureVector(kind EntityKind, id string, at time.Time) *FeatureVector {
	return &FeatureVector{
		EntityKind:  kind,
		EntityID:    id,
		Numeric:     make(map[string]float64),
		Categorical: make(map[string][]string),
		ComputedAt:  at,
	}
}

// Get 读取数值特征，不存在返回 0。
func (v *FeatureVector) Get(name string) float64 {
	if v == nil || v.Numeric == nil {
		return 0
	}
	return v.Numeric[name]
}

// GetCategorical 读取类别特征。
func (v *FeatureVector) GetCategorical(name string) []string {
	if v == nil || v.Categorical == nil {
		return nil
	}
	return v.Categorical[name]
}

// FeaturePair 是用户-物品对，作为批量 pair 特征结果的 key。
type FeaturePair struct {
	UserID string
	ItemID string
}

// FeatureService 是特征服务的领域接口，由 feature.Store 实现。
//
// 注意：请求级上下文（如 country、time_of_day）通过 RecommendContext 传递，
// 而不是通过 FeatureService 获取。
type FeatureService interface {
	GetUserFeatures(ctx context.Context, userID string) (*FeatureVector, error)
	GetItemFeatures(ctx context.Context, itemID string) (*FeatureVector, error)
	GetPairFeatures(ctx context.Context, userID, itemID string) (*FeatureVector, error)

	// BatchGetUserFeatures 与逐个调用 GetUserFeatures 结果一致
	BatchGetUserFeatures(ctx context.Context, userIDs []string) (map[string]*FeatureVector, error)
	BatchGetItemFeatures(ctx context.Context, itemIDs []string) (map[string]*FeatureVector, error)
	BatchGetPairFeatures(ctx context.Context, pairs []FeaturePair) (map[FeaturePair]*FeatureVector, error)

	InvalidateUserFeatures(ctx context.Context, userID string) error
	InvalidateItemFeatures(ctx context.Context, itemID string) error
	InvalidateAll(ctx context.Context) error
}
