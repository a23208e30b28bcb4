package boost

import (
	"context"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/dsl"
)

// Expr 是表达式加权：表达式为 true 时乘以 BoostFactor。
type Expr struct {
	BoostName   string
	Program     *dsl.Program
	BoostFactor float64
}

// NewExpr 编译表达式；factor 必须为正数。
func NewExpr(name, expr string, factor float64) (*Expr, error) {
	if factor <= 0 {
		return nil, core.NewConfigurationError(core.ModuleRules, "boost: factor must be positive, got %v", factor)
	}
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &Expr{BoostName: name, Program: p, BoostFactor: factor}, nil
}

func (b *Expr) Name() string {
	if b.BoostName != "" {
		return b.BoostName
	}
	return "boost.expr"
}

func (b *Expr) Factor(_ context.Context, rctx *core.RecommendContext, item *core.Item, score float64) (float64, error) {
	ok, err := b.Program.Eval(item, rctx, score)
	if err != nil {
		return 0, err
	}
	if ok {
		return b.BoostFactor, nil
	}
	return 1, nil
}
