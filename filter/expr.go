package filter

import (
	"context"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/dsl"
)

// Expr 是表达式过滤器：表达式为 true 的物品被过滤。
// 表达式中的 score 恒为 0，过滤阶段不读分数。
type Expr struct {
	FilterName string
	Program    *dsl.Program
}

// NewExpr 编译表达式并创建过滤器；编译失败返回配置错误。
func NewExpr(name, expr string) (*Expr, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Expr{FilterName: name, Program: p}, nil
}

func (f *Expr) Name() string {
	if f.FilterName != "" {
		return f.FilterName
	}
	return "filter.expr"
}

func (f *Expr) ShouldFilter(_ context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Program.Eval(item, rctx, 0)
}
