// Package rerank 提供重排规则：在过滤与加权之后重排或截断候选列表。
package rerank

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Reranker 可以重排、截断候选列表，但不得引入新物品或重复物品。
type Reranker interface {
	Name() string
	Rerank(ctx context.Context, cands []core.Candidate, rctx *core.RecommendContext, lookup core.ItemLookup) ([]core.Candidate, error)
}
