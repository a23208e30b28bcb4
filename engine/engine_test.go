package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/filter"
	"github.com/rushteam/recengine/rules"
	"github.com/rushteam/recengine/store"
)

func rating(v float64) *float64 { return &v }

type fixture struct {
	entities *store.MemoryEntityStore
	backend  *store.MemoryStore
	clock    *core.FixedClock
	engine   *Engine
}

// 用户 U 对 A 评分 5（购买）、对 B 评分 2（浏览）；最相似的用户 V 对 C 评分 4。
// 内容上 D 与 A 最接近但缺货，E 与 B 接近，C 与 U 的历史无共同词。
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		entities: store.NewMemoryEntityStore(),
		backend:  store.NewMemoryStore(store.WithCleanupInterval(0)),
		clock:    core.NewFixedClock(now),
	}
	t.Cleanup(func() { _ = f.backend.Close() })

	old := now.Add(-365 * 24 * time.Hour)
	for _, id := range []string{"U", "V", "W"} {
		require.NoError(t, f.entities.PutUser(ctx, &core.User{ID: id}))
	}
	for _, it := range []*core.Item{
		{ID: "A", Title: "golang concurrency", Category: "programming", Tags: []string{"golang"}, InStock: true, CreatedAt: old},
		{ID: "B", Title: "rust ownership", Category: "programming", Tags: []string{"rust"}, InStock: true, CreatedAt: old},
		{ID: "C", Title: "banana bread", Category: "cooking", Tags: []string{"baking"}, InStock: true, CreatedAt: old},
		{ID: "D", Title: "golang concurrency practice", Category: "programming", Tags: []string{"golang"}, CreatedAt: old},
		{ID: "E", Title: "rust async", Category: "programming", Tags: []string{"rust"}, InStock: true, CreatedAt: old},
	} {
		require.NoError(t, f.entities.PutItem(ctx, it))
	}
	at := now.Add(-time.Hour)
	for _, in := range []core.Interaction{
		{UserID: "U", ItemID: "A", Type: core.InteractionPurchase, Rating: rating(5), Timestamp: at},
		{UserID: "U", ItemID: "B", Type: core.InteractionView, Rating: rating(2), Timestamp: at},
		{UserID: "V", ItemID: "A", Type: core.InteractionRating, Rating: rating(4), Timestamp: at},
		{UserID: "V", ItemID: "C", Type: core.InteractionRating, Rating: rating(4), Timestamp: at},
		{UserID: "W", ItemID: "B", Type: core.InteractionRating, Rating: rating(2), Timestamp: at},
		{UserID: "W", ItemID: "D", Type: core.InteractionRating, Rating: rating(1), Timestamp: at},
	} {
		require.NoError(t, f.entities.AppendInteraction(ctx, in))
	}

	cfg := DefaultConfig()
	cfg.KNeighbors = 1
	cfg.MinInteractions = 2
	e, err := New(f.entities, f.backend, append([]Option{WithConfig(cfg), WithClock(f.clock)}, opts...)...)
	require.NoError(t, err)
	f.engine = e
	return f
}

var userCF = map[string]string{ParamCFMode: "user"}

func TestScore_Collaborative(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Score(context.Background(), "U", "collaborative", 5, userCF)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "C", got[0].ItemID)
	assert.InDelta(t, 4.0, got[0].Score, 1e-9)
}

func TestScore_CollaborativeModes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name   string
		params map[string]string
		want   []string
	}{
		{"default", nil, []string{"C"}},
		{"both", map[string]string{ParamCFMode: "both"}, []string{"C"}},
		// C 与 D 的交互数低于 MinInteractions
		{"item", map[string]string{ParamCFMode: "item"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.engine.Score(ctx, "U", "collaborative", 5, tt.params)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, core.CandidateIDs(got))
			assert.InDelta(t, 4.0, got[0].Score, 1e-9)
		})
	}
}

func TestScore_HybridAppliesRules(t *testing.T) {
	f := newFixture(t)
	got, err := f.engine.Score(context.Background(), "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	// D 在内容一路排第一但缺货被过滤
	assert.Equal(t, []string{"C", "E"}, core.CandidateIDs(got))
	assert.InDelta(t, 0.6, got[0].Score, 1e-9)
	assert.Less(t, got[1].Score, 0.4)

	raw, err := f.engine.Score(context.Background(), "U", "hybrid", 5, map[string]string{ParamCFMode: "user", ParamApplyRules: "false"})
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D", "E"}, core.CandidateIDs(raw))
}

func TestScore_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.Score(ctx, "U", "deep_learning", 5, nil)
	assert.True(t, core.IsConfiguration(err))

	_, err = f.engine.Score(ctx, "nobody", "hybrid", 5, nil)
	assert.True(t, core.IsNotFound(err))

	_, err = f.engine.Score(ctx, "U", "hybrid", 0, nil)
	assert.True(t, core.IsInvalidInput(err))

	for _, params := range []map[string]string{
		{ParamAlpha: "1.5"},
		{ParamAlpha: "x"},
		{ParamPolicy: "median"},
		{ParamCFMode: "graph"},
		{ParamApplyRules: "maybe"},
	} {
		_, err = f.engine.Score(ctx, "U", "hybrid", 5, params)
		assert.True(t, core.IsConfiguration(err), "%v: %v", params, err)
	}
	assert.Zero(t, f.backend.Len(), "failed requests must not be cached")
}

func TestScore_ColdStartUser(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.entities.PutUser(context.Background(), &core.User{ID: "new"}))
	got, err := f.engine.Score(context.Background(), "new", "hybrid", 5, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestScore_CachedUntilInteraction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Score(ctx, "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	assert.Positive(t, f.backend.Len())

	again, err := f.engine.Score(ctx, "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	require.NoError(t, f.engine.RecordInteraction(ctx, core.Interaction{UserID: "U", ItemID: "C", Type: core.InteractionPurchase}))
	after, err := f.engine.Score(ctx, "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	assert.NotContains(t, core.CandidateIDs(after), "C")
	assert.Contains(t, core.CandidateIDs(after), "E")

	ins, err := f.entities.InteractionsByUser(ctx, "U")
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now(), ins[len(ins)-1].Timestamp)
}

func TestScore_RuleChangeBypassesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.engine.Score(ctx, "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	require.Equal(t, []string{"C", "E"}, core.CandidateIDs(before))

	f.engine.Rules().RemoveRule(rules.RuleOutOfStock)
	after, err := f.engine.Score(ctx, "U", "hybrid", 5, userCF)
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "D", "E"}, core.CandidateIDs(after))

	// 不执行规则的结果与规则版本无关，仍然命中缓存
	raw := map[string]string{ParamCFMode: "user", ParamApplyRules: "false"}
	_, err = f.engine.Score(ctx, "U", "hybrid", 5, raw)
	require.NoError(t, err)
	n := f.backend.Len()
	require.NoError(t, f.engine.Rules().AddRule(rules.FilterRule(rules.RuleOutOfStock, 100, filter.OutOfStock{})))
	_, err = f.engine.Score(ctx, "U", "hybrid", 5, raw)
	require.NoError(t, err)
	assert.Equal(t, n, f.backend.Len())
}

func TestBatchFeatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.engine.BatchGetUserFeatures(ctx, []string{"U", "ghost"})
	assert.True(t, core.IsNotFound(err))

	pairs := []core.FeaturePair{{UserID: "U", ItemID: "A"}, {UserID: "V", ItemID: "C"}, {UserID: "W", ItemID: "E"}}
	got, err := f.engine.BatchGetPairFeatures(ctx, pairs)
	require.NoError(t, err)
	require.Len(t, got, len(pairs))
	for _, p := range pairs {
		want, err := f.engine.GetPairFeatures(ctx, p.UserID, p.ItemID)
		require.NoError(t, err)
		assert.Equal(t, want.Numeric, got[p].Numeric, p)
	}
}

func TestInvalidateUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.Score(ctx, "U", "collaborative", 5, userCF)
	require.NoError(t, err)
	_, err = f.engine.GetUserFeatures(ctx, "U")
	require.NoError(t, err)
	require.Positive(t, f.backend.Len())

	require.NoError(t, f.engine.InvalidateUser(ctx, "U"))
	assert.Zero(t, f.backend.Len())
}

func TestInvalidateAll(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for _, uid := range []string{"U", "V"} {
		_, err := f.engine.Score(ctx, uid, "content_based", 5, nil)
		require.NoError(t, err)
	}
	_, err := f.engine.GetItemFeatures(ctx, "A")
	require.NoError(t, err)

	require.NoError(t, f.engine.InvalidateAll(ctx))
	assert.Zero(t, f.backend.Len())
}

func TestRecordInteraction_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tests := []struct {
		name string
		in   core.Interaction
	}{
		{"missing user", core.Interaction{ItemID: "A", Type: core.InteractionView}},
		{"missing item", core.Interaction{UserID: "U", Type: core.InteractionView}},
		{"unknown type", core.Interaction{UserID: "U", ItemID: "A", Type: "share"}},
		{"negative rating", core.Interaction{UserID: "U", ItemID: "A", Type: core.InteractionRating, Rating: rating(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, core.IsInvalidInput(f.engine.RecordInteraction(ctx, tt.in)))
		})
	}

	ro, err := New(struct{ core.EntityStore }{f.entities}, f.backend)
	require.NoError(t, err)
	err = ro.RecordInteraction(ctx, core.Interaction{UserID: "U", ItemID: "A", Type: core.InteractionView})
	assert.True(t, core.IsNotSupported(err))
	assert.True(t, core.IsNotSupported(ro.UpdateItem(ctx, &core.Item{ID: "Z"})))
}

func TestUpdateItemMarksCorpusStale(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.engine.Rebuild(ctx))
	assert.False(t, f.engine.Stats().CorpusStale)

	require.NoError(t, f.engine.UpdateItem(ctx, &core.Item{ID: "F", Title: "golang generics", Category: "programming", InStock: true}))
	assert.True(t, f.engine.Stats().CorpusStale)

	require.NoError(t, f.engine.Rebuild(ctx))
	s := f.engine.Stats()
	assert.False(t, s.CorpusStale)
	assert.Equal(t, 6, s.CorpusItems)
	assert.Equal(t, 3, s.Users)
	assert.Equal(t, 4, s.Items)
	assert.Equal(t, f.clock.Now(), s.MatrixBuiltAt)
}

func TestTrending(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	got, err := f.engine.Trending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	// A: 5+3, B: 1+3, C 与 D 同分按 id 升序
	assert.Equal(t, []string{"A", "B", "C", "D"}, core.CandidateIDs(got))

	_, err = f.engine.Trending(ctx, 0, 10)
	assert.True(t, core.IsInvalidInput(err))

	filtered := newFixture(t, WithTrendingFilters(true))
	got, err = filtered.engine.Trending(ctx, 24*time.Hour, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, core.CandidateIDs(got))

	got, err = filtered.engine.Trending(ctx, 30*time.Minute, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExplain(t *testing.T) {
	f := newFixture(t)
	ex, err := f.engine.Explain(context.Background(), "U", "C", userCF)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, ex.CollaborativeRaw, 1e-9)
	assert.InDelta(t, 1.0, ex.CollaborativeNormalized, 1e-9)
	assert.InDelta(t, 0.6, ex.CollaborativeContribution, 1e-9)
	assert.Zero(t, ex.ContentRaw)
	assert.InDelta(t, 0.6, ex.Final, 1e-9)

	_, err = f.engine.Explain(context.Background(), "nobody", "C", nil)
	assert.True(t, core.IsNotFound(err))
}

func TestSimilarItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	got, err := f.engine.SimilarItems(ctx, "A", "content_based", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"D"}, core.CandidateIDs(got))

	_, err = f.engine.SimilarItems(ctx, "missing", "content_based", 1)
	assert.True(t, core.IsNotFound(err))

	_, err = f.engine.SimilarItems(ctx, "A", "hybrid", 1)
	assert.True(t, core.IsNotSupported(err))
}

func TestApplyBusinessRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cands := []core.Candidate{{ItemID: "D", Score: 1}, {ItemID: "A", Score: 0.9}, {ItemID: "C", Score: 0.5}, {ItemID: "ghost", Score: 0.4}}

	got, err := f.engine.ApplyBusinessRules(ctx, cands, &core.RecommendContext{UserID: "U"}, rules.TypeFilter)
	require.NoError(t, err)
	// D 缺货，A 已购买，ghost 未知
	assert.Equal(t, []string{"C"}, core.CandidateIDs(got))

	f.engine.Rules().RemoveRule(rules.RuleOutOfStock)
	got, err = f.engine.ApplyBusinessRules(ctx, cands, &core.RecommendContext{UserID: "U"}, rules.TypeFilter)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "C"}, core.CandidateIDs(got))
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HybridAlpha = 2
	_, err := New(store.NewMemoryEntityStore(), store.NewMemoryStore(store.WithCleanupInterval(0)), WithConfig(cfg))
	assert.True(t, core.IsConfiguration(err))

	_, err = ParseAlgorithm("content")
	assert.True(t, core.IsConfiguration(err))
}
