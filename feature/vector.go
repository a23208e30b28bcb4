package feature

import "github.com/rushteam/recengine/core"

// Vector 是特征向量，定义在领域层。
type Vector = core.FeatureVector

// 数值特征名
const (
	TotalInteractions   = "total_interactions"
	ViewCount           = "view_count"
	ClickCount          = "click_count"
	PurchaseCount       = "purchase_count"
	RatingCount         = "rating_count"
	AvgRating           = "avg_rating"
	ActivityScore       = "activity_score"
	RecencyScore        = "recency_score"
	AccountAgeDays      = "account_age_days"
	PopularityScore     = "popularity_score"
	AgeDays             = "age_days"
	UniqueUsers         = "unique_users"
	HasInteracted       = "has_interacted"
	PairInteractions    = "pair_interactions"
	CategoryMatch       = "category_match"
	UserActivityScore   = "user_activity_score"
	ItemPopularityScore = "item_popularity_score"
)

// 类别特征名
const (
	FavoriteCategories = "favorite_categories"
	Category           = "category"
	Tags               = "tags"
)

// countName 返回某交互类型的计数特征名。
func countName(t core.InteractionType) string {
	switch t {
	case core.InteractionView:
		return ViewCount
	case core.InteractionClick:
		return ClickCount
	case core.InteractionPurchase:
		return PurchaseCount
	case core.InteractionRating:
		return RatingCount
	default:
		return string(t) + "_count"
	}
}
