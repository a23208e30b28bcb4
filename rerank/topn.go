package rerank

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// TopN 是一个 Top-N 截断规则，通常放在其他重排规则之后。
type TopN struct {
	// N 要保留的物品数量（Top N）
	// 如果 N <= 0，则返回所有物品（不截断）
	N int
}

func (n *TopN) Name() string {
	return "rerank.topn"
}

func (n *TopN) Rerank(
	_ context.Context,
	cands []core.Candidate,
	_ *core.RecommendContext,
	_ core.ItemLookup,
) ([]core.Candidate, error) {
	return core.TruncateCandidates(cands, n.N), nil
}
