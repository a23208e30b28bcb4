package core

import (
	"sort"
	"time"
)

// Item 是物品实体，归实体存储所有，对推荐核心只读。
//
// 限制类属性：
//   - InStock=false 的物品会被缺货过滤规则移除
//   - MinAge>0 表示年龄限制
//   - AllowedCountries / BlockedCountries 表示地域限制
type Item struct {
	ID          string
	Title       string
	Category    string
	Tags        []string
	Description string

	// Attributes 是结构化特征属性，供表达式规则和特征计算使用
	Attributes map[string]any

	CreatedAt time.Time

	InStock     bool
	Promotional bool
	PromoEndsAt *time.Time // 为空表示促销无截止时间

	MinAge           int
	AllowedCountries []string
	BlockedCountries []string

	// Popularity 是累计热度（写路径按交互权重累加）
	Popularity float64
}

// HasText 判断物品是否存在可向量化的文本字段。
func (it *Item) HasText() bool {
	return it.Title != "" || it.Description != "" || it.Category != "" || len(it.Tags) > 0
}

// HasTag 判断物品是否带有某个标签。
func (it *Item) HasTag(tag string) bool {
	for _, t := range it.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Candidate 是候选列表中的一项：(item id, score)。
// Score 不要求归一化；同一列表内 ItemID 必须唯一。
type Candidate struct {
	ItemID string  `json:"item_id"`
	Score  float64 `json:"score"`
}

// CloneCandidates 复制候选列表，规则与缓存之间不共享底层数组。
func CloneCandidates(in []Candidate) []Candidate {
	if in == nil {
		return nil
	}
	out := make([]Candidate, len(in))
	copy(out, in)
	return out
}

// DedupCandidates 按 ItemID 去重，保留首次出现的位置与分数。
func DedupCandidates(in []Candidate) []Candidate {
	seen := make(map[string]struct{}, len(in))
	out := make([]Candidate, 0, len(in))
	for _, c := range in {
		if _, ok := seen[c.ItemID]; ok {
			continue
		}
		seen[c.ItemID] = struct{}{}
		out = append(out, c)
	}
	return out
}

// HasUniqueIDs 检查候选列表 ItemID 是否唯一。
func HasUniqueIDs(in []Candidate) bool {
	seen := make(map[string]struct{}, len(in))
	for _, c := range in {
		if _, ok := seen[c.ItemID]; ok {
			return false
		}
		seen[c.ItemID] = struct{}{}
	}
	return true
}

// SortCandidates 按分数降序排序，分数相同时按 ItemID 升序，保证确定性。
func SortCandidates(in []Candidate) {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Score != in[j].Score {
			return in[i].Score > in[j].Score
		}
		return in[i].ItemID < in[j].ItemID
	})
}

// SortCandidatesStable 按分数降序稳定排序，同分保持原相对顺序。
func SortCandidatesStable(in []Candidate) {
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].Score > in[j].Score
	})
}

// TruncateCandidates 截取前 n 个；n <= 0 不截断。
func TruncateCandidates(in []Candidate, n int) []Candidate {
	if n <= 0 || len(in) <= n {
		return in
	}
	return in[:n]
}

// CandidateIDs 返回候选列表中的 ItemID（保持顺序）。
func CandidateIDs(in []Candidate) []string {
	ids := make([]string, len(in))
	for i, c := range in {
		ids[i] = c.ItemID
	}
	return ids
}
