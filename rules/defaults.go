package rules

import (
	"github.com/rushteam/recengine/boost"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/filter"
	"github.com/rushteam/recengine/rerank"
)

// 内置规则名称。
const (
	RuleOutOfStock    = "filter_out_of_stock"
	RuleAgeRestricted = "filter_age_restricted"
	RulePurchased     = "filter_purchased"
	RuleGeoRestricted = "filter_geo_restricted"
	RulePreferences   = "boost_preferences"
	RulePromotional   = "boost_promotional"
	RuleNewItems      = "boost_new_items"
	RuleDiversity     = "diversity"
)

// DefaultOptions 是内置规则集依赖的协作方与参数。
type DefaultOptions struct {
	Purchases core.PurchaseLookup
	Clock     core.Clock

	// MaxPerCategory 是 DIVERSITY_MAX_PER_CATEGORY，默认 3
	MaxPerCategory int
}

// DefaultRules 返回内置规则集：
//
//	filter_out_of_stock(100) filter_age_restricted(95) filter_purchased(90) filter_geo_restricted(85)
//	boost_preferences(60) boost_promotional(50) boost_new_items(40)
//	diversity(20)
//
// Purchases 为空时不包含 filter_purchased。
func DefaultRules(opts DefaultOptions) []Rule {
	rs := []Rule{
		FilterRule(RuleOutOfStock, 100, filter.OutOfStock{}),
		FilterRule(RuleAgeRestricted, 95, filter.AgeRestricted{}),
	}
	if opts.Purchases != nil {
		rs = append(rs, FilterRule(RulePurchased, 90, &filter.Purchased{Lookup: opts.Purchases}))
	}
	rs = append(rs,
		FilterRule(RuleGeoRestricted, 85, filter.GeoRestricted{}),
		BoostRule(RulePreferences, 60, &boost.Preferences{CategoryFactor: 1.4, TagFactor: 1.2}),
		BoostRule(RulePromotional, 50, &boost.Promotional{BoostFactor: 1.5, Clock: opts.Clock}),
		BoostRule(RuleNewItems, 40, &boost.NewItems{BoostFactor: 1.3, Clock: opts.Clock}),
		RerankRule(RuleDiversity, 20, &rerank.Diversity{MaxPerCategory: opts.MaxPerCategory}),
	)
	return rs
}
