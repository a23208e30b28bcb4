package core

import (
	"fmt"
	"time"
)

// InteractionType 是交互类型。
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionClick    InteractionType = "click"
	InteractionPurchase InteractionType = "purchase"
	InteractionRating   InteractionType = "rating"
)

// ParseInteractionType 解析交互类型，未知类型返回 INVALID_INPUT。
func ParseInteractionType(s string) (InteractionType, error) {
	switch t := InteractionType(s); t {
	case InteractionView, InteractionClick, InteractionPurchase, InteractionRating:
		return t, nil
	default:
		return "", NewDomainError(ModuleStore, ErrorCodeInvalidInput, fmt.Sprintf("unknown interaction type %q", s))
	}
}

// Interaction 是一条用户-物品交互记录，只追加、不修改。
type Interaction struct {
	UserID string
	ItemID string
	Type   InteractionType

	// Rating 为显式评分，可为空
	Rating *float64

	// Weight 是交互权重；为 0 时由 InteractionWeights 按类型给出默认值
	Weight float64

	Timestamp time.Time
}

// InteractionWeights 是各交互类型的默认权重（无显式评分时使用）。
type InteractionWeights map[InteractionType]float64

// DefaultInteractionWeights 返回默认权重：purchase > rating > click > view。
func DefaultInteractionWeights() InteractionWeights {
	return InteractionWeights{
		InteractionView:     1,
		InteractionClick:    2,
		InteractionRating:   3,
		InteractionPurchase: 5,
	}
}

// Of 返回某类型的权重，未配置时为 1。
func (w InteractionWeights) Of(t InteractionType) float64 {
	if v, ok := w[t]; ok {
		return v
	}
	return 1
}

// Value 返回交互在矩阵中的取值：显式评分优先，其次记录自带权重，最后按类型默认权重。
func (w InteractionWeights) Value(in Interaction) float64 {
	if in.Rating != nil && *in.Rating > 0 {
		return *in.Rating
	}
	if in.Weight > 0 {
		return in.Weight
	}
	return w.Of(in.Type)
}
