package recall

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/recengine/core"
)

// Fanout 并发执行多个打分源，按 Sources 顺序返回各自的候选列表。
//
// 任一源失败时默认整体失败（协作方错误向上透传）；BestEffort=true 时失败源返回空列表并记录日志。
type Fanout struct {
	Sources       []Source
	Timeout       time.Duration // 每个源的超时时间，0 表示不限制
	MaxConcurrent int           // 最大并发数（0 表示无限制）
	BestEffort    bool
	Logger        zerolog.Logger
}

func (n *Fanout) Name() string { return "recall.fanout" }

// Run 返回与 Sources 一一对应的候选列表，每个列表内 item id 唯一。
func (n *Fanout) Run(ctx context.Context, rctx *core.RecommendContext) ([][]core.Candidate, error) {
	results := make([][]core.Candidate, len(n.Sources))
	if len(n.Sources) == 0 {
		return results, nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	if n.MaxConcurrent > 0 {
		eg.SetLimit(n.MaxConcurrent)
	}
	for i, src := range n.Sources {
		i, s := i, src
		eg.Go(func() error {
			recallCtx := egCtx
			if n.Timeout > 0 {
				var cancel context.CancelFunc
				recallCtx, cancel = context.WithTimeout(egCtx, n.Timeout)
				defer cancel()
			}
			cands, err := s.Recall(recallCtx, rctx)
			if err != nil {
				if n.BestEffort {
					n.Logger.Warn().Err(err).Str("source", s.Name()).Msg("recall source failed, using empty list")
					return nil
				}
				return err
			}
			// 每个槽位只由一个 goroutine 写入
			results[i] = core.DedupCandidates(cands)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
