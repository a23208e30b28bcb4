package core

import "time"

// RecommendContext 承载一次请求的用户与场景信息，贯穿规则引擎透传。
//
// 各内置规则读取的字段：
//   - filter_age_restricted: User.Age
//   - filter_geo_restricted: Country，缺省时回退到 User.Country
//   - filter_purchased: UserID
//   - boost_preferences: User.FavoriteCategories / User.FavoriteTags
//   - boost_promotional / boost_new_items: Now
//
// 表达式规则可通过 ctx.extra 访问 Extra 中的任意键。
type RecommendContext struct {
	UserID string
	User   *User

	Country   string
	Device    string
	TimeOfDay string
	IsWeekend bool
	Weather   string

	// Now 为空时由引擎填充为当前时钟时间
	Now time.Time

	// Extra 是请求级扩展参数
	Extra map[string]any
}

// EffectiveCountry 返回请求国家；未显式给出时使用用户资料中的国家。
func (rctx *RecommendContext) EffectiveCountry() string {
	if rctx == nil {
		return ""
	}
	if rctx.Country != "" {
		return rctx.Country
	}
	if rctx.User != nil {
		return rctx.User.Country
	}
	return ""
}

// GetExtra 读取扩展参数。
func (rctx *RecommendContext) GetExtra(key string) (any, bool) {
	if rctx == nil || rctx.Extra == nil {
		return nil, false
	}
	v, ok := rctx.Extra[key]
	return v, ok
}

// PutExtra 写入扩展参数。
func (rctx *RecommendContext) PutExtra(key string, v any) {
	if rctx.Extra == nil {
		rctx.Extra = make(map[string]any)
	}
	rctx.Extra[key] = v
}

// ToMap 将上下文转换为表达式求值用的 map。
func (rctx *RecommendContext) ToMap() map[string]any {
	if rctx == nil {
		return map[string]any{}
	}
	extra := rctx.Extra
	if extra == nil {
		extra = map[string]any{}
	}
	return map[string]any{
		"user_id":     rctx.UserID,
		"country":     rctx.EffectiveCountry(),
		"device":      rctx.Device,
		"time_of_day": rctx.TimeOfDay,
		"is_weekend":  rctx.IsWeekend,
		"weather":     rctx.Weather,
		"now":         rctx.Now,
		"extra":       extra,
	}
}
