package recall

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// Source 表示一个可复用的打分源（协同过滤/内容/热门/...）。
// 你可以把它理解为"可并发 fan-out 的策略单元"。
type Source interface {
	Name() string
	Recall(ctx context.Context, rctx *core.RecommendContext) ([]core.Candidate, error)
}

var (
	_ Source = (*CollaborativeRecall)(nil)
	_ Source = (*ContentRecall)(nil)
	_ Source = (*Trending)(nil)
)
