package rules

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/pkg/metrics"
)

// Engine 持有一个不可变、带版本号的规则集快照。
// 写操作（AddRule/RemoveRule/Replace）构建新快照后原子替换，Apply 只读当前快照，不加锁。
type Engine struct {
	mu     sync.Mutex // 串行化写操作
	set    atomic.Pointer[ruleSet]
	logger zerolog.Logger
}

type registered struct {
	Rule
	seq int
}

type ruleSet struct {
	version uint64
	nextSeq int
	rules   []registered // 按执行顺序排列
}

type Option func(*Engine)

func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine 创建一个空规则引擎；默认规则通过 AddRules(DefaultRules(...)...) 加载。
func NewEngine(opts ...Option) *Engine {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("component", "rules").Logger()
	e.set.Store(&ruleSet{})
	return e
}

// AddRule 注册一条规则；名称为空、重名、类型未知或缺少 Apply 时返回配置错误。
func (e *Engine) AddRule(r Rule) error {
	return e.AddRules(r)
}

// AddRules 原子地注册多条规则：任意一条非法则一条都不注册。
func (e *Engine) AddRules(rs ...Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.set.Load()
	next, err := cur.with(rs...)
	if err != nil {
		return err
	}
	e.set.Store(next)
	for _, r := range rs {
		e.logger.Info().Str("rule", r.Name).Str("type", string(r.Type)).Int("priority", r.Priority).Msg("rule added")
	}
	return nil
}

// RemoveRule 按名称移除规则，不存在时为空操作。
func (e *Engine) RemoveRule(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.set.Load()
	kept := make([]registered, 0, len(cur.rules))
	for _, r := range cur.rules {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(cur.rules) {
		return
	}
	e.set.Store(&ruleSet{version: cur.version + 1, nextSeq: cur.nextSeq, rules: kept})
	e.logger.Info().Str("rule", name).Msg("rule removed")
}

// Replace 用一组新规则整体替换当前规则集（配置热加载）。
func (e *Engine) Replace(rs []Rule) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	cur := e.set.Load()
	next, err := (&ruleSet{version: cur.version}).with(rs...)
	if err != nil {
		return err
	}
	e.set.Store(next)
	e.logger.Info().Int("rules", len(rs)).Uint64("version", next.version).Msg("rule set replaced")
	return nil
}

// Version 返回当前规则集版本，每次变更递增。
func (e *Engine) Version() uint64 { return e.set.Load().version }

// Summary 按执行顺序返回所有规则（含未启用的）。
func (e *Engine) Summary() []RuleSummary {
	cur := e.set.Load()
	out := make([]RuleSummary, len(cur.rules))
	for i, r := range cur.rules {
		out[i] = RuleSummary{Name: r.Name, Type: r.Type, Priority: r.Priority, Enabled: r.Enabled}
	}
	return out
}

func (s *ruleSet) with(rs ...Rule) (*ruleSet, error) {
	names := make(map[string]struct{}, len(s.rules)+len(rs))
	for _, r := range s.rules {
		names[r.Name] = struct{}{}
	}
	next := &ruleSet{version: s.version + 1, nextSeq: s.nextSeq}
	next.rules = append(make([]registered, 0, len(s.rules)+len(rs)), s.rules...)
	for _, r := range rs {
		if err := r.validate(); err != nil {
			return nil, err
		}
		if _, dup := names[r.Name]; dup {
			return nil, core.NewConfigurationError(core.ModuleRules, "rules: duplicate rule name %q", r.Name)
		}
		names[r.Name] = struct{}{}
		next.rules = append(next.rules, registered{Rule: r, seq: next.nextSeq})
		next.nextSeq++
	}
	sort.SliceStable(next.rules, func(i, j int) bool {
		a, b := next.rules[i], next.rules[j]
		if a.Type.stage() != b.Type.stage() {
			return a.Type.stage() < b.Type.stage()
		}
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		return a.seq < b.seq
	})
	return next, nil
}

// Apply 依次执行 过滤 → 加权 → 重排。
//
// types 非空时只执行这些类型的已启用规则。加权阶段之后按分数稳定重排，使重排规则看到分数顺序。
// 单条规则出错、panic 或违反输出约定时跳过该规则并记录日志与指标，继续使用执行前的列表。
// 只有 lookup 预取失败（协作方不可用）会返回错误。
func (e *Engine) Apply(
	ctx context.Context,
	cands []core.Candidate,
	rctx *core.RecommendContext,
	lookup core.ItemLookup,
	types ...Type,
) ([]core.Candidate, error) {
	set := e.set.Load()
	cur := core.DedupCandidates(cands)
	if rctx == nil {
		rctx = &core.RecommendContext{}
	}
	selected := selectRules(set.rules, types)
	if len(selected) == 0 || len(cur) == 0 {
		return cur, nil
	}

	memo, err := prefetch(ctx, lookup, core.CandidateIDs(cur))
	if err != nil {
		return nil, err
	}

	boosted := false
	for _, r := range selected {
		if r.Type == TypeRerank && boosted {
			core.SortCandidatesStable(cur)
			boosted = false
		}
		next, ok := e.run(ctx, r.Rule, cur, rctx, memo)
		if !ok {
			continue
		}
		if len(next) != len(cur) {
			e.logger.Debug().Str("rule", r.Name).Int("before", len(cur)).Int("after", len(next)).Msg("rule changed count")
		}
		cur = next
		if r.Type == TypeBoost {
			boosted = true
		}
	}
	if boosted {
		core.SortCandidatesStable(cur)
	}
	return cur, nil
}

func selectRules(all []registered, types []Type) []registered {
	out := make([]registered, 0, len(all))
	for _, r := range all {
		if !r.Enabled {
			continue
		}
		if len(types) > 0 && !containsType(types, r.Type) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func containsType(types []Type, t Type) bool {
	for _, x := range types {
		if x == t {
			return true
		}
	}
	return false
}

// run 执行单条规则并校验输出；返回 false 表示规则被跳过。
func (e *Engine) run(
	ctx context.Context,
	r Rule,
	in []core.Candidate,
	rctx *core.RecommendContext,
	lookup core.ItemLookup,
) (out []core.Candidate, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			e.fail(r, "panic", fmt.Errorf("panic: %v", p))
			out, ok = nil, false
		}
	}()
	// 规则拿到的是副本，修改不会影响回退用的列表
	res, err := r.Apply(ctx, core.CloneCandidates(in), rctx, lookup)
	if err != nil {
		e.fail(r, "error", err)
		return nil, false
	}
	if err := checkContract(r.Type, in, res); err != nil {
		e.fail(r, "contract", err)
		return nil, false
	}
	return res, true
}

func (e *Engine) fail(r Rule, reason string, err error) {
	metrics.RecordRuleFailure(r.Name, reason)
	e.logger.Warn().Err(err).Str("rule", r.Name).Str("reason", reason).Msg("rule skipped")
}

// checkContract 校验规则输出：
//   - filter：输入的保序子序列
//   - boost：id 与顺序完全一致
//   - rerank：输入的子集，id 唯一
func checkContract(t Type, in, out []core.Candidate) error {
	switch t {
	case TypeFilter:
		j := 0
		for _, c := range out {
			for j < len(in) && in[j].ItemID != c.ItemID {
				j++
			}
			if j == len(in) {
				return fmt.Errorf("filter output is not an order-preserving subsequence (item %q)", c.ItemID)
			}
			j++
		}
	case TypeBoost:
		if len(in) != len(out) {
			return fmt.Errorf("boost changed length %d -> %d", len(in), len(out))
		}
		for i := range in {
			if in[i].ItemID != out[i].ItemID {
				return fmt.Errorf("boost changed item at %d: %q -> %q", i, in[i].ItemID, out[i].ItemID)
			}
		}
	case TypeRerank:
		allowed := make(map[string]struct{}, len(in))
		for _, c := range in {
			allowed[c.ItemID] = struct{}{}
		}
		seen := make(map[string]struct{}, len(out))
		for _, c := range out {
			if _, ok := allowed[c.ItemID]; !ok {
				return fmt.Errorf("rerank introduced item %q", c.ItemID)
			}
			if _, dup := seen[c.ItemID]; dup {
				return fmt.Errorf("rerank duplicated item %q", c.ItemID)
			}
			seen[c.ItemID] = struct{}{}
		}
	}
	return nil
}
