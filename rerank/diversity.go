package rerank

import (
	"context"
	"sort"

	"github.com/rushteam/recengine/core"
)

// Uncategorized 是无类目（或查不到物品）时使用的类目名。
const Uncategorized = "uncategorized"

// Diversity 是多样性重排：每个类目最多保留 MaxPerCategory 个物品（默认 3）。
// 超出的物品按分数从低到高丢弃，保留物品之间的相对顺序不变。
type Diversity struct {
	MaxPerCategory int
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Rerank(
	ctx context.Context,
	cands []core.Candidate,
	_ *core.RecommendContext,
	lookup core.ItemLookup,
) ([]core.Candidate, error) {
	if len(cands) == 0 {
		return cands, nil
	}
	limit := n.MaxPerCategory
	if limit <= 0 {
		limit = 3
	}
	items, err := lookup.LookupItems(ctx, core.CandidateIDs(cands))
	if err != nil {
		return nil, err
	}

	byCategory := make(map[string][]int)
	for i, c := range cands {
		cate := Uncategorized
		if it, ok := items[c.ItemID]; ok && it != nil && it.Category != "" {
			cate = it.Category
		}
		byCategory[cate] = append(byCategory[cate], i)
	}

	drop := make(map[int]struct{})
	for _, idx := range byCategory {
		if len(idx) <= limit {
			continue
		}
		// 分数降序，同分保留靠前的
		sort.SliceStable(idx, func(a, b int) bool {
			return cands[idx[a]].Score > cands[idx[b]].Score
		})
		for _, i := range idx[limit:] {
			drop[i] = struct{}{}
		}
	}

	out := make([]core.Candidate, 0, len(cands)-len(drop))
	for i, c := range cands {
		if _, ok := drop[i]; !ok {
			out = append(out, c)
		}
	}
	return out, nil
}
