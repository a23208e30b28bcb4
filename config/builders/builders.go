package builders

import (
	"time"

	"github.com/rushteam/recengine/boost"
	"github.com/rushteam/recengine/config"
	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/filter"
	"github.com/rushteam/recengine/pipeline"
	"github.com/rushteam/recengine/pkg/conv"
	"github.com/rushteam/recengine/rerank"
	"github.com/rushteam/recengine/rules"
)

func init() {
	config.Register("filter.out_of_stock", BuildOutOfStock)
	config.Register("filter.age_restricted", BuildAgeRestricted)
	config.Register("filter.geo_restricted", BuildGeoRestricted)
	config.Register("filter.purchased", BuildPurchased)
	config.Register("filter.blacklist", BuildBlacklist)
	config.Register("filter.user_block", BuildUserBlock)
	config.Register("filter.expr", BuildFilterExpr)
	config.Register("filter.restrictions", BuildRestrictions)
	config.Register("boost.preferences", BuildPreferences)
	config.Register("boost.promotional", BuildPromotional)
	config.Register("boost.new_items", BuildNewItems)
	config.Register("boost.expr", BuildBoostExpr)
	config.Register("rerank.diversity", BuildDiversity)
	config.Register("rerank.top_n", BuildTopN)
}

func invalid(format string, args ...any) error {
	return core.NewConfigurationError(core.ModuleConfig, "builders: "+format, args...)
}

func BuildOutOfStock(map[string]any, pipeline.Deps) (rules.Rule, error) {
	return rules.FilterRule("", 0, filter.OutOfStock{}), nil
}

func BuildAgeRestricted(map[string]any, pipeline.Deps) (rules.Rule, error) {
	return rules.FilterRule("", 0, filter.AgeRestricted{}), nil
}

func BuildGeoRestricted(map[string]any, pipeline.Deps) (rules.Rule, error) {
	return rules.FilterRule("", 0, filter.GeoRestricted{}), nil
}

func BuildPurchased(_ map[string]any, deps pipeline.Deps) (rules.Rule, error) {
	if deps.Purchases == nil {
		return rules.Rule{}, invalid("filter.purchased requires a purchase lookup")
	}
	return rules.FilterRule("", 0, &filter.Purchased{Lookup: deps.Purchases}), nil
}

// BuildBlacklist 配置：item_ids（内存黑名单）、key（存储中的黑名单 key，需要 deps.Store）。
func BuildBlacklist(cfg map[string]any, deps pipeline.Deps) (rules.Rule, error) {
	ids := conv.Strings(cfg["item_ids"])
	key := conv.Get(cfg, "key", "")
	var adapter *filter.StoreAdapter
	if key != "" {
		if deps.Store == nil {
			return rules.Rule{}, invalid("filter.blacklist key %q requires a store", key)
		}
		adapter = filter.NewStoreAdapter(deps.Store)
	}
	return rules.FilterRule("", 0, filter.NewBlacklist(ids, adapter, key)), nil
}

func BuildUserBlock(cfg map[string]any, deps pipeline.Deps) (rules.Rule, error) {
	if deps.Store == nil {
		return rules.Rule{}, invalid("filter.user_block requires a store")
	}
	keyPrefix := conv.Get(cfg, "key_prefix", "")
	return rules.FilterRule("", 0, filter.NewUserBlock(filter.NewStoreAdapter(deps.Store), keyPrefix)), nil
}

func BuildFilterExpr(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	f, err := filter.NewExpr(conv.Get(cfg, "name", ""), conv.Get(cfg, "expr", ""))
	if err != nil {
		return rules.Rule{}, err
	}
	return rules.FilterRule("", 0, f), nil
}

var restrictionChecks = map[string]filter.Filter{
	"out_of_stock":   filter.OutOfStock{},
	"age_restricted": filter.AgeRestricted{},
	"geo_restricted": filter.GeoRestricted{},
}

// BuildRestrictions 把若干属性检查合并为一条过滤规则。配置：checks（默认全部，按给定顺序执行）。
func BuildRestrictions(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	checks := conv.Strings(cfg["checks"])
	if len(checks) == 0 {
		checks = []string{"out_of_stock", "age_restricted", "geo_restricted"}
	}
	chain := &filter.Chain{ChainName: "filter.restrictions"}
	for _, name := range checks {
		f, ok := restrictionChecks[name]
		if !ok {
			return rules.Rule{}, invalid("filter.restrictions: unknown check %q", name)
		}
		chain.Filters = append(chain.Filters, f)
	}
	return rules.FilterRule("", 0, chain), nil
}

func BuildPreferences(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	b := &boost.Preferences{CategoryFactor: 1.4, TagFactor: 1.2}
	if f, ok := conv.ToFloat64(cfg["category_factor"]); ok {
		b.CategoryFactor = f
	}
	if f, ok := conv.ToFloat64(cfg["tag_factor"]); ok {
		b.TagFactor = f
	}
	if b.CategoryFactor <= 0 || b.TagFactor <= 0 {
		return rules.Rule{}, invalid("boost.preferences factors must be positive")
	}
	return rules.BoostRule("", 0, b), nil
}

func BuildPromotional(cfg map[string]any, deps pipeline.Deps) (rules.Rule, error) {
	b := &boost.Promotional{BoostFactor: 1.5, Clock: deps.Clock}
	if f, ok := conv.ToFloat64(cfg["factor"]); ok {
		if f <= 0 {
			return rules.Rule{}, invalid("boost.promotional factor must be positive")
		}
		b.BoostFactor = f
	}
	return rules.BoostRule("", 0, b), nil
}

// BuildNewItems 配置：window_days（默认 7）、factor（默认 1.3）。
func BuildNewItems(cfg map[string]any, deps pipeline.Deps) (rules.Rule, error) {
	b := &boost.NewItems{Window: 7 * 24 * time.Hour, BoostFactor: 1.3, Clock: deps.Clock}
	if d, ok := conv.ToFloat64(cfg["window_days"]); ok {
		if d <= 0 {
			return rules.Rule{}, invalid("boost.new_items window_days must be positive")
		}
		b.Window = time.Duration(d * float64(24*time.Hour))
	}
	if f, ok := conv.ToFloat64(cfg["factor"]); ok {
		if f <= 0 {
			return rules.Rule{}, invalid("boost.new_items factor must be positive")
		}
		b.BoostFactor = f
	}
	return rules.BoostRule("", 0, b), nil
}

func BuildBoostExpr(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	factor, _ := conv.ToFloat64(cfg["factor"])
	b, err := boost.NewExpr(conv.Get(cfg, "name", ""), conv.Get(cfg, "expr", ""), factor)
	if err != nil {
		return rules.Rule{}, err
	}
	return rules.BoostRule("", 0, b), nil
}

func BuildDiversity(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	n := conv.Int(cfg, "max_per_category", 3)
	if n <= 0 {
		return rules.Rule{}, invalid("rerank.diversity max_per_category must be positive")
	}
	return rules.RerankRule("", 0, &rerank.Diversity{MaxPerCategory: n}), nil
}

func BuildTopN(cfg map[string]any, _ pipeline.Deps) (rules.Rule, error) {
	n, ok := conv.ToInt(cfg["n"])
	if !ok || n <= 0 {
		return rules.Rule{}, invalid("rerank.top_n requires a positive n")
	}
	return rules.RerankRule("", 0, &rerank.TopN{N: n}), nil
}
