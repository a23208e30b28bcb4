package dsl

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/recengine/core"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("user", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("ctx", cel.MapType(cel.StringType, cel.DynType)),
			cel.Variable("score", cel.DoubleType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译后的规则表达式，使用 CEL (Common Expression Language)。
// 编译一次，可被多个请求并发求值。
//
// 可用变量：
//   - item：id / title / category / tags / description / attributes / created_at /
//     in_stock / promotional / min_age / popularity
//   - user：id / country / age（未知为 -1）/ favorite_categories / favorite_tags / preferences
//   - ctx：user_id / country / device / time_of_day / is_weekend / weather / now / extra
//   - score：当前候选分
//
// 示例：
//   - `item.category == "books" && score > 0.5`
//   - `"sale" in item.tags`
//   - `ctx.device == "mobile" && item.attributes.size == "small"`
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式，表达式必须返回 bool；编译失败返回配置错误。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return nil, core.NewConfigurationError(core.ModuleRules, "dsl: empty expression")
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleRules, core.ErrorCodeInternalError, err, "dsl: init cel env")
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, core.NewConfigurationError(core.ModuleRules, "dsl: compile %q: %v", expr, issues.Err())
	}
	if ot := ast.OutputType(); !ot.IsExactType(cel.BoolType) && !ot.IsExactType(cel.DynType) {
		return nil, core.NewConfigurationError(core.ModuleRules, "dsl: expression %q must return bool, got %v", expr, ot)
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, core.NewConfigurationError(core.ModuleRules, "dsl: program %q: %v", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// MustCompile 同 Compile，失败时 panic，仅用于包级变量与测试。
func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.expr }

// Eval 对单个候选求值。
// 表达式访问不存在的 key 会报错，可以先用 `"key" in item.attributes` 判断存在性。
func (p *Program) Eval(item *core.Item, rctx *core.RecommendContext, score float64) (bool, error) {
	out, _, err := p.prg.Eval(map[string]any{
		"item":  ItemVars(item),
		"user":  UserVars(userOf(rctx)),
		"ctx":   rctx.ToMap(),
		"score": score,
	})
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return bool, got %T", p.expr, out.Value())
	}
	return b, nil
}

func userOf(rctx *core.RecommendContext) *core.User {
	if rctx == nil {
		return nil
	}
	return rctx.User
}

// ItemVars 构建 item 变量。
func ItemVars(it *core.Item) map[string]any {
	if it == nil {
		return map[string]any{}
	}
	attrs := it.Attributes
	if attrs == nil {
		attrs = map[string]any{}
	}
	tags := it.Tags
	if tags == nil {
		tags = []string{}
	}
	return map[string]any{
		"id":          it.ID,
		"title":       it.Title,
		"category":    it.Category,
		"tags":        tags,
		"description": it.Description,
		"attributes":  attrs,
		"created_at":  it.CreatedAt,
		"in_stock":    it.InStock,
		"promotional": it.Promotional,
		"min_age":     int64(it.MinAge),
		"popularity":  it.Popularity,
	}
}

// UserVars 构建 user 变量，用户未知时各字段为零值。
func UserVars(u *core.User) map[string]any {
	out := map[string]any{
		"id":                  "",
		"country":             "",
		"age":                 int64(-1),
		"favorite_categories": []string{},
		"favorite_tags":       []string{},
		"preferences":         map[string]float64{},
		"created_at":          time.Time{},
	}
	if u == nil {
		return out
	}
	out["id"] = u.ID
	out["country"] = u.Country
	if u.Age != nil {
		out["age"] = int64(*u.Age)
	}
	if u.FavoriteCategories != nil {
		out["favorite_categories"] = u.FavoriteCategories
	}
	if u.FavoriteTags != nil {
		out["favorite_tags"] = u.FavoriteTags
	}
	if u.Preferences != nil {
		out["preferences"] = u.Preferences
	}
	out["created_at"] = u.CreatedAt
	return out
}
