package feature

import (
	"math"
	"sort"
	"time"

	"github.com/rushteam/recengine/core"
)

// Params 是特征计算参数。
type Params struct {
	// DecayDays 是 recency_score 的指数衰减常数（天），默认 30
	DecayDays float64

	// ActivityWindow 是活跃度统计的近期窗口，默认 30 天
	ActivityWindow time.Duration

	// TopCategories 是 favorite_categories 保留数量，默认 3
	TopCategories int
}

// DefaultParams 返回默认计算参数。
func DefaultParams() Params {
	return Params{DecayDays: 30, ActivityWindow: 30 * 24 * time.Hour, TopCategories: 3}
}

func (p Params) withDefaults() Params {
	d := DefaultParams()
	if p.DecayDays <= 0 {
		p.DecayDays = d.DecayDays
	}
	if p.ActivityWindow <= 0 {
		p.ActivityWindow = d.ActivityWindow
	}
	if p.TopCategories <= 0 {
		p.TopCategories = d.TopCategories
	}
	return p
}

// ComputeUserFeatures 由用户实体与其交互日志计算用户特征，是纯函数。
//
// user 可以为空（仅依据交互计算）；categories 为 itemID → category，用于喜好类目统计。
// 无交互时返回默认值：计数、评分、活跃度、新近度均为 0，favorite_categories 为空。
func ComputeUserFeatures(userID string, user *core.User, ins []core.Interaction, categories map[string]string, now time.Time, p Params) *Vector {
	p = p.withDefaults()
	v := core.NewFeatureVector(core.EntityUser, userID, now)
	fillCounts(v, ins)

	recent := 0
	for _, in := range ins {
		if now.Sub(in.Timestamp) <= p.ActivityWindow {
			recent++
		}
	}
	v.Numeric[ActivityScore] = ActivityScoreOf(len(ins), recent, p.ActivityWindow)
	v.Numeric[RecencyScore] = recencyOf(ins, now, p.DecayDays)

	if user != nil && !user.CreatedAt.IsZero() {
		v.Numeric[AccountAgeDays] = wholeDays(now.Sub(user.CreatedAt))
	} else {
		v.Numeric[AccountAgeDays] = 0
	}

	freq := make(map[string]int)
	for _, in := range ins {
		if c := categories[in.ItemID]; c != "" {
			freq[c]++
		}
	}
	v.Categorical[FavoriteCategories] = topKeys(freq, p.TopCategories)
	return v
}

// ComputeItemFeatures 由物品实体与其交互日志计算物品特征，是纯函数。
func ComputeItemFeatures(itemID string, item *core.Item, ins []core.Interaction, now time.Time, p Params) *Vector {
	p = p.withDefaults()
	v := core.NewFeatureVector(core.EntityItem, itemID, now)
	fillCounts(v, ins)

	users := make(map[string]struct{})
	for _, in := range ins {
		users[in.UserID] = struct{}{}
	}
	v.Numeric[UniqueUsers] = float64(len(users))
	v.Numeric[RecencyScore] = recencyOf(ins, now, p.DecayDays)

	v.Numeric[PopularityScore] = 0
	v.Numeric[AgeDays] = 0
	v.Categorical[Category] = []string{}
	v.Categorical[Tags] = []string{}
	if item != nil {
		v.Numeric[PopularityScore] = item.Popularity
		if !item.CreatedAt.IsZero() {
			v.Numeric[AgeDays] = wholeDays(now.Sub(item.CreatedAt))
		}
		if item.Category != "" {
			v.Categorical[Category] = []string{item.Category}
		}
		tags := append([]string(nil), item.Tags...)
		sort.Strings(tags)
		v.Categorical[Tags] = tags
	}
	return v
}

// ComputePairFeatures 由用户特征、物品特征与该用户对该物品的交互计算用户-物品对特征。
func ComputePairFeatures(userFeat, itemFeat *Vector, pairIns []core.Interaction, now time.Time) *Vector {
	id := PairID(userFeat.EntityID, itemFeat.EntityID)
	v := core.NewFeatureVector(core.EntityPair, id, now)

	v.Numeric[PairInteractions] = float64(len(pairIns))
	v.Numeric[HasInteracted] = boolFloat(len(pairIns) > 0)

	match := false
	if cats := itemFeat.GetCategorical(Category); len(cats) > 0 {
		for _, fav := range userFeat.GetCategorical(FavoriteCategories) {
			if fav == cats[0] {
				match = true
				break
			}
		}
	}
	v.Numeric[CategoryMatch] = boolFloat(match)
	v.Numeric[UserActivityScore] = userFeat.Get(ActivityScore)
	v.Numeric[ItemPopularityScore] = itemFeat.Get(PopularityScore)
	return v
}

// PairID 是用户-物品对的实体 id。
func PairID(userID, itemID string) string {
	return userID + ":" + itemID
}

// ActivityScoreOf = 0.4*min(total/100, 1) + 0.6*min(recent/30, 1)，结果在 [0,1]。
// recent 按窗口天数归一，默认窗口 30 天即每天一次为满分。
func ActivityScoreOf(total, recent int, window time.Duration) float64 {
	days := window.Hours() / 24
	if days <= 0 {
		days = 30
	}
	s := 0.4*math.Min(float64(total)/100, 1) + 0.6*math.Min(float64(recent)/days, 1)
	return clamp01(s)
}

// RecencyScoreOf = exp(-days/decayDays)，elapsed 为距最近一次交互的时间。
func RecencyScoreOf(elapsed time.Duration, decayDays float64) float64 {
	if decayDays <= 0 {
		decayDays = 30
	}
	days := elapsed.Hours() / 24
	if days < 0 {
		days = 0
	}
	return clamp01(math.Exp(-days / decayDays))
}

func recencyOf(ins []core.Interaction, now time.Time, decayDays float64) float64 {
	if len(ins) == 0 {
		return 0
	}
	last := ins[0].Timestamp
	for _, in := range ins[1:] {
		if in.Timestamp.After(last) {
			last = in.Timestamp
		}
	}
	return RecencyScoreOf(now.Sub(last), decayDays)
}

func fillCounts(v *Vector, ins []core.Interaction) {
	v.Numeric[TotalInteractions] = float64(len(ins))
	for _, t := range []core.InteractionType{core.InteractionView, core.InteractionClick, core.InteractionPurchase, core.InteractionRating} {
		v.Numeric[countName(t)] = 0
	}
	var sum float64
	var n int
	for _, in := range ins {
		v.Numeric[countName(in.Type)]++
		if in.Rating != nil {
			sum += *in.Rating
			n++
		}
	}
	v.Numeric[AvgRating] = 0
	if n > 0 {
		v.Numeric[AvgRating] = sum / float64(n)
	}
}

// topKeys 按频次降序取前 k 个 key，频次相同按名称升序。
func topKeys(freq map[string]int, k int) []string {
	keys := make([]string, 0, len(freq))
	for key := range freq {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if freq[keys[i]] != freq[keys[j]] {
			return freq[keys[i]] > freq[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > k {
		keys = keys[:k]
	}
	return keys
}

func wholeDays(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return math.Floor(d.Hours() / 24)
}

func clamp01(x float64) float64 {
	if math.IsNaN(x) || x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
