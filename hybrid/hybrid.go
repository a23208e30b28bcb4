// Package hybrid 将协同过滤与内容打分两路候选合并为一个有序列表。
package hybrid

import (
	"math"
	"sort"

	"github.com/rushteam/recengine/core"
)

// Policy 是合并策略。
type Policy string

const (
	Weighted Policy = "weighted"
	Rank     Policy = "rank"
	Cascade  Policy = "cascade"
)

// ParsePolicy 解析合并策略名称；未知名称返回配置错误，不做静默回退。
func ParsePolicy(name string) (Policy, error) {
	switch Policy(name) {
	case Weighted, Rank, Cascade:
		return Policy(name), nil
	default:
		return "", core.NewConfigurationError(core.ModuleHybrid, "hybrid: unknown merge policy %q", name)
	}
}

// RankMode 是 rank 策略下的排名合并方式。
type RankMode string

const (
	// Reciprocal 按 Σ weight/rank 合并，分数越大越好
	Reciprocal RankMode = "reciprocal"
	// RankSum 按加权排名之和合并，和越小越好，对外分数为 1/和
	RankSum RankMode = "sum"
)

func ParseRankMode(name string) (RankMode, error) {
	switch RankMode(name) {
	case "", Reciprocal:
		return Reciprocal, nil
	case RankSum:
		return RankSum, nil
	default:
		return "", core.NewConfigurationError(core.ModuleHybrid, "hybrid: unknown rank mode %q", name)
	}
}

const DefaultCascadeDiscount = 0.8

// Combiner 合并两路候选。零值不可用，Policy 必须显式给出。
type Combiner struct {
	// Alpha 是协同过滤一路的权重，内容一路为 1-Alpha，取值 [0,1]
	Alpha  float64
	Policy Policy

	RankMode RankMode
	// RankPenalty 是只出现在一路中的物品在另一路的排名，<= 0 时取 max(len)+1
	RankPenalty int

	// CascadeDiscount 是 cascade 追加内容物品时的分数折扣，<= 0 时取 0.8
	CascadeDiscount float64
}

// Validate 检查配置。
func (c *Combiner) Validate() error {
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if _, err := ParseRankMode(string(c.RankMode)); err != nil {
		return err
	}
	if math.IsNaN(c.Alpha) || c.Alpha < 0 || c.Alpha > 1 {
		return core.NewConfigurationError(core.ModuleHybrid, "hybrid: alpha %v out of [0,1]", c.Alpha)
	}
	return nil
}

// Combine 合并 collab 与 content 两路候选，输出截断到 topN（<= 0 不截断），item id 唯一。
func (c *Combiner) Combine(collab, content []core.Candidate, topN int) ([]core.Candidate, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	collab = core.DedupCandidates(collab)
	content = core.DedupCandidates(content)

	var out []core.Candidate
	switch c.Policy {
	case Weighted:
		out = c.weighted(collab, content)
	case Rank:
		out = c.rank(collab, content)
	case Cascade:
		out = c.cascade(collab, content, topN)
	}
	return core.TruncateCandidates(out, topN), nil
}

func (c *Combiner) weighted(collab, content []core.Candidate) []core.Candidate {
	cn := Normalize(collab)
	tn := Normalize(content)
	scores := make(map[string]float64, len(cn)+len(tn))
	for id, s := range cn {
		scores[id] += c.Alpha * s
	}
	for id, s := range tn {
		scores[id] += (1 - c.Alpha) * s
	}
	return ordered(scores, collab, content)
}

func (c *Combiner) rank(collab, content []core.Candidate) []core.Candidate {
	penalty := c.RankPenalty
	if penalty <= 0 {
		penalty = max(len(collab), len(content)) + 1
	}
	cr, tr := ranks(collab), ranks(content)
	rankOf := func(r map[string]int, id string) float64 {
		if v, ok := r[id]; ok {
			return float64(v)
		}
		return float64(penalty)
	}
	mode, _ := ParseRankMode(string(c.RankMode))

	scores := make(map[string]float64, len(cr)+len(tr))
	for _, list := range [][]core.Candidate{collab, content} {
		for _, cand := range list {
			id := cand.ItemID
			if _, done := scores[id]; done {
				continue
			}
			rc, rt := rankOf(cr, id), rankOf(tr, id)
			if mode == RankSum {
				sum := c.Alpha*rc + (1-c.Alpha)*rt
				scores[id] = 1 / sum
			} else {
				scores[id] = c.Alpha/rc + (1-c.Alpha)/rt
			}
		}
	}
	return ordered(scores, collab, content)
}

func (c *Combiner) cascade(collab, content []core.Candidate, topN int) []core.Candidate {
	discount := c.CascadeDiscount
	if discount <= 0 {
		discount = DefaultCascadeDiscount
	}
	out := core.CloneCandidates(core.TruncateCandidates(collab, topN))
	if out == nil {
		out = make([]core.Candidate, 0, len(content))
	}
	seen := make(map[string]struct{}, len(out))
	for _, cand := range out {
		seen[cand.ItemID] = struct{}{}
	}
	for _, cand := range content {
		if topN > 0 && len(out) >= topN {
			break
		}
		if _, ok := seen[cand.ItemID]; ok {
			continue
		}
		seen[cand.ItemID] = struct{}{}
		out = append(out, core.Candidate{ItemID: cand.ItemID, Score: cand.Score * discount})
	}
	return out
}

// Normalize 按最大值缩放到 [0,1]；最大值 <= 0 时保持原值。
func Normalize(list []core.Candidate) map[string]float64 {
	out := make(map[string]float64, len(list))
	if len(list) == 0 {
		return out
	}
	maxScore := math.Inf(-1)
	for _, c := range list {
		if c.Score > maxScore {
			maxScore = c.Score
		}
	}
	for _, c := range list {
		if maxScore > 0 {
			out[c.ItemID] = c.Score / maxScore
		} else {
			out[c.ItemID] = c.Score
		}
	}
	return out
}

func ranks(list []core.Candidate) map[string]int {
	out := make(map[string]int, len(list))
	for i, c := range list {
		out[c.ItemID] = i + 1
	}
	return out
}

// ordered 按分数降序输出；同分时按在输入中的最早位置，再按 item id 升序。
func ordered(scores map[string]float64, lists ...[]core.Candidate) []core.Candidate {
	pos := make(map[string]int, len(scores))
	for _, list := range lists {
		for i, c := range list {
			if p, ok := pos[c.ItemID]; !ok || i < p {
				pos[c.ItemID] = i
			}
		}
	}
	out := make([]core.Candidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, core.Candidate{ItemID: id, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if pos[a.ItemID] != pos[b.ItemID] {
			return pos[a.ItemID] < pos[b.ItemID]
		}
		return a.ItemID < b.ItemID
	})
	return out
}
