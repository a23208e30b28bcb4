package recall

import (
	"context"
	"sort"

	"github.com/rushteam/recengine/core"
)

// UserBasedCF 是基于用户的协同过滤（User-based Collaborative Filtering, User-CF）。
//
// 核心思想："兴趣相似的用户，喜欢相似的物品"
//
// 算法流程：
//  1. 用户 → 交互权重向量（评分优先，否则按交互类型默认权重）
//  2. 计算与其他用户的相似度（Cosine / Pearson），只考虑交互数 ≥ MinInteractions 的用户
//  3. 取相似度为正的 TopK 邻居
//  4. 候选分 = Σ(sim·w) / Σ|sim|，即邻居评分的相似度加权平均
//
// 冷启动：目标用户交互数低于 MinInteractions 时返回空列表，不报错。
type UserBasedCF struct {
	// KNeighbors 是参与打分的相似用户数，默认 20
	KNeighbors int

	// MinInteractions 是目标用户与邻居的最少交互数，默认 5
	MinInteractions int

	// Metric 相似度度量方式：cosine / pearson，默认 cosine
	Metric SimilarityMetric

	// IncludeInteracted 为 true 时不排除目标用户已交互的物品
	IncludeInteracted bool
}

func (r *UserBasedCF) Name() string { return "recall.u2i" }

func (r *UserBasedCF) defaults() (k, minInter int, metric SimilarityMetric, err error) {
	k, minInter = r.KNeighbors, r.MinInteractions
	if k <= 0 {
		k = 20
	}
	if minInter <= 0 {
		minInter = 5
	}
	metric, err = ParseSimilarityMetric(string(r.Metric))
	return
}

// Score 对目标用户打分，topN <= 0 表示不截断。
func (r *UserBasedCF) Score(m *Matrix, userID string, topN int) ([]core.Candidate, error) {
	k, minInter, metric, err := r.defaults()
	if err != nil {
		return nil, err
	}
	target := m.UserItems(userID)
	if len(target) == 0 || m.UserCount(userID) < minInter {
		return nil, nil
	}

	// 与目标用户没有共同物品的用户相似度为 0，只需遍历共现用户
	peers := make(map[string]struct{})
	for _, it := range sortedKeys(target) {
		for v := range m.ItemUsers(it) {
			if v != userID {
				peers[v] = struct{}{}
			}
		}
	}

	type neighbor struct {
		id  string
		sim float64
	}
	neighbors := make([]neighbor, 0, len(peers))
	for v := range peers {
		if m.UserCount(v) < minInter {
			continue
		}
		var sim float64
		if metric == Cosine {
			sim = m.userCosine(userID, v)
		} else {
			sim = Similarity(metric, target, m.UserItems(v))
		}
		if sim > 0 {
			neighbors = append(neighbors, neighbor{id: v, sim: sim})
		}
	}
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].sim != neighbors[j].sim {
			return neighbors[i].sim > neighbors[j].sim
		}
		return neighbors[i].id < neighbors[j].id
	})
	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}

	num := make(map[string]float64)
	den := make(map[string]float64)
	for _, nb := range neighbors {
		row := m.UserItems(nb.id)
		for _, it := range sortedKeys(row) {
			if !r.IncludeInteracted {
				if _, seen := target[it]; seen {
					continue
				}
			}
			num[it] += nb.sim * row[it]
			den[it] += nb.sim
		}
	}
	return finalize(m, num, den, topN), nil
}

// ItemBasedCF 是基于物品的协同过滤（Item-CF）。
//
// 对目标用户交互过的每个物品 j，取与其余弦相似度（在用户维度上）为正的 TopK 物品 i，
// 候选分 = Σ_j sim(i,j)·w_uj / Σ_j |sim(i,j)|。
type ItemBasedCF struct {
	// KNeighbors 是每个种子物品保留的相似物品数，默认 20
	KNeighbors int

	// MinInteractions 是目标用户的最少交互数，默认 5
	MinInteractions int

	// MinItemInteractions 是候选物品的最少交互数，不足视为冷启动物品；默认与 MinInteractions 相同
	MinItemInteractions int

	// Metric 相似度度量方式：cosine / pearson，默认 cosine
	Metric SimilarityMetric

	IncludeInteracted bool
}

func (r *ItemBasedCF) Name() string { return "recall.i2i" }

// Score 对目标用户打分，topN <= 0 表示不截断。
func (r *ItemBasedCF) Score(m *Matrix, userID string, topN int) ([]core.Candidate, error) {
	k, minInter, minItem := r.KNeighbors, r.MinInteractions, r.MinItemInteractions
	if k <= 0 {
		k = 20
	}
	if minInter <= 0 {
		minInter = 5
	}
	if minItem <= 0 {
		minItem = minInter
	}
	metric, err := ParseSimilarityMetric(string(r.Metric))
	if err != nil {
		return nil, err
	}
	target := m.UserItems(userID)
	if len(target) == 0 || m.UserCount(userID) < minInter {
		return nil, nil
	}

	num := make(map[string]float64)
	den := make(map[string]float64)
	for _, j := range sortedKeys(target) {
		for _, nb := range m.similarItems(j, metric, k) {
			if m.ItemCount(nb.ItemID) < minItem {
				continue
			}
			if !r.IncludeInteracted {
				if _, seen := target[nb.ItemID]; seen {
					continue
				}
			}
			num[nb.ItemID] += nb.Score * target[j]
			den[nb.ItemID] += nb.Score
		}
	}
	return finalize(m, num, den, topN), nil
}

// SimilarItems 返回与 itemID 相似度为正的前 n 个物品（协同过滤视角）。
func (m *Matrix) SimilarItems(itemID string, n int) []core.Candidate {
	return m.similarItems(itemID, Cosine, n)
}

func (m *Matrix) similarItems(j string, metric SimilarityMetric, k int) []core.Candidate {
	col := m.ItemUsers(j)
	if len(col) == 0 {
		return nil
	}
	dots := make(map[string]float64)
	for _, v := range sortedKeys(col) {
		wv := col[v]
		for i, wi := range m.UserItems(v) {
			if i != j {
				dots[i] += wv * wi
			}
		}
	}
	out := make([]core.Candidate, 0, len(dots))
	for i, dot := range dots {
		var sim float64
		if metric == Cosine {
			den := m.itemNorms[i] * m.itemNorms[j]
			if den > 0 {
				sim = dot / den
			}
		} else {
			sim = Similarity(metric, m.ItemUsers(i), col)
		}
		if sim > 0 {
			out = append(out, core.Candidate{ItemID: i, Score: sim})
		}
	}
	sortCandidates(out, m.ItemCount)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out
}

func (m *Matrix) userCosine(u, v string) float64 {
	a, b := m.users[u], m.users[v]
	if len(a) > len(b) {
		a, b = b, a
	}
	var dot float64
	for _, it := range sortedKeys(a) {
		if y, ok := b[it]; ok {
			dot += a[it] * y
		}
	}
	den := m.userNorms[u] * m.userNorms[v]
	if den == 0 {
		return 0
	}
	return dot / den
}

func finalize(m *Matrix, num, den map[string]float64, topN int) []core.Candidate {
	out := make([]core.Candidate, 0, len(num))
	for it, n := range num {
		if d := den[it]; d > 0 {
			out = append(out, core.Candidate{ItemID: it, Score: n / d})
		}
	}
	sortCandidates(out, m.ItemCount)
	return core.TruncateCandidates(out, topN)
}

// CFMode 是协同过滤模式。
type CFMode string

const (
	CFModeUser CFMode = "user"
	CFModeItem CFMode = "item"
	CFModeBoth CFMode = "both"
)

// ParseCFMode 解析协同过滤模式，空值为 user，未知值返回配置错误。
func ParseCFMode(s string) (CFMode, error) {
	switch CFMode(s) {
	case "", CFModeUser:
		return CFModeUser, nil
	case CFModeBoth:
		return CFModeBoth, nil
	case CFModeItem:
		return CFModeItem, nil
	default:
		return "", core.NewConfigurationError(core.ModuleRecall, "recall: unknown collaborative mode %q", s)
	}
}

// CollaborativeRecall 是协同过滤召回源，从 Matrix 快照读取数据。
//
// Mode=both 时分别取 User-CF 与 Item-CF 的前 2*TopN，同一物品的分数取平均。
type CollaborativeRecall struct {
	Matrix func() *Matrix
	Mode   CFMode
	User   UserBasedCF
	Item   ItemBasedCF
	TopN   int
}

func (r *CollaborativeRecall) Name() string { return "recall.collaborative" }

func (r *CollaborativeRecall) Recall(ctx context.Context, rctx *core.RecommendContext) ([]core.Candidate, error) {
	if r.Matrix == nil || rctx == nil || rctx.UserID == "" {
		return nil, nil
	}
	m := r.Matrix()
	if m == nil {
		return nil, nil
	}
	mode, err := ParseCFMode(string(r.Mode))
	if err != nil {
		return nil, err
	}
	return r.Score(m, rctx.UserID, mode, r.TopN)
}

// Score 以指定模式对用户打分。
func (r *CollaborativeRecall) Score(m *Matrix, userID string, mode CFMode, topN int) ([]core.Candidate, error) {
	switch mode {
	case CFModeUser:
		return r.User.Score(m, userID, topN)
	case CFModeItem:
		return r.Item.Score(m, userID, topN)
	}

	wide := 0
	if topN > 0 {
		wide = topN * 2
	}
	userRecs, err := r.User.Score(m, userID, wide)
	if err != nil {
		return nil, err
	}
	itemRecs, err := r.Item.Score(m, userID, wide)
	if err != nil {
		return nil, err
	}
	sum := make(map[string]float64)
	n := make(map[string]float64)
	for _, list := range [][]core.Candidate{userRecs, itemRecs} {
		for _, c := range list {
			sum[c.ItemID] += c.Score
			n[c.ItemID]++
		}
	}
	return finalize(m, sum, n, topN), nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
