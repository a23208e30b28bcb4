package filter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/store"
)

func itemsLookup(items ...*core.Item) core.ItemLookup {
	byID := make(map[string]*core.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	return core.ItemLookupFunc(func(_ context.Context, ids []string) (map[string]*core.Item, error) {
		out := make(map[string]*core.Item)
		for _, id := range ids {
			if it, ok := byID[id]; ok {
				out[id] = it
			}
		}
		return out, nil
	})
}

type purchases map[string][]string

func (p purchases) PurchasedItems(_ context.Context, userID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, id := range p[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func TestApply_BuiltinFilters(t *testing.T) {
	age16 := 16
	items := []*core.Item{
		{ID: "a", InStock: true},
		{ID: "b", InStock: false},
		{ID: "c", InStock: true, MinAge: 18},
		{ID: "d", InStock: true, AllowedCountries: []string{"US"}},
		{ID: "e", InStock: true, BlockedCountries: []string{"DE"}},
		{ID: "f", InStock: true},
	}
	lookup := itemsLookup(items...)
	cands := []core.Candidate{
		{ItemID: "f", Score: 0.9}, {ItemID: "e", Score: 0.8}, {ItemID: "ghost", Score: 0.75},
		{ItemID: "d", Score: 0.7}, {ItemID: "c", Score: 0.6}, {ItemID: "b", Score: 0.5}, {ItemID: "a", Score: 0.4},
	}
	rctx := &core.RecommendContext{UserID: "u", User: &core.User{ID: "u", Age: &age16, Country: "DE"}}

	tests := []struct {
		name string
		f    Filter
		rctx *core.RecommendContext
		want []string
	}{
		{"out of stock", OutOfStock{}, rctx, []string{"f", "e", "d", "c", "a"}},
		{"age restricted", AgeRestricted{}, rctx, []string{"f", "e", "d", "b", "a"}},
		{"age unknown", AgeRestricted{}, &core.RecommendContext{UserID: "u"}, []string{"f", "e", "d", "c", "b", "a"}},
		{"geo from user profile", GeoRestricted{}, rctx, []string{"f", "c", "b", "a"}},
		{"geo from request", GeoRestricted{}, &core.RecommendContext{Country: "US"}, []string{"f", "e", "d", "c", "b", "a"}},
		{"purchased", &Purchased{Lookup: purchases{"u": {"a", "f"}}}, rctx, []string{"e", "d", "c", "b"}},
		{"blacklist", NewBlacklist([]string{"c", "d"}, nil, ""), rctx, []string{"f", "e", "b", "a"}},
		{"chain", &Chain{Filters: []Filter{OutOfStock{}, GeoRestricted{}}}, rctx, []string{"f", "c", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(context.Background(), tt.f, cands, tt.rctx, lookup)
			require.NoError(t, err)
			// 未知物品 ghost 一律移除，幸存者保持原相对顺序
			assert.Equal(t, tt.want, core.CandidateIDs(got))
		})
	}
}

func TestApply_Errors(t *testing.T) {
	boom := errors.New("boom")
	f := Func{FilterName: "broken", Fn: func(context.Context, *core.RecommendContext, *core.Item) (bool, error) {
		return false, boom
	}}
	_, err := Apply(context.Background(), f, []core.Candidate{{ItemID: "a"}}, nil, itemsLookup(&core.Item{ID: "a"}))
	assert.ErrorIs(t, err, boom)

	failing := core.ItemLookupFunc(func(context.Context, []string) (map[string]*core.Item, error) {
		return nil, boom
	})
	_, err = Apply(context.Background(), OutOfStock{}, []core.Candidate{{ItemID: "a"}}, nil, failing)
	assert.ErrorIs(t, err, boom)
}

func TestStoreBackedFilters(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore(store.WithCleanupInterval(0))
	defer mem.Close()
	adapter := NewStoreAdapter(mem)
	require.NoError(t, adapter.PutList(ctx, "blacklist:global", []string{"b"}, time.Hour))
	require.NoError(t, adapter.PutList(ctx, "user:block:u", []string{"c"}, 0))

	lookup := itemsLookup(&core.Item{ID: "a"}, &core.Item{ID: "b"}, &core.Item{ID: "c"})
	cands := []core.Candidate{{ItemID: "a"}, {ItemID: "b"}, {ItemID: "c"}}

	got, err := Apply(ctx, NewBlacklist([]string{"a"}, adapter, "blacklist:global"), cands, nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, core.CandidateIDs(got))

	got, err = Apply(ctx, NewUserBlock(adapter, ""), cands, &core.RecommendContext{UserID: "u"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, core.CandidateIDs(got))

	// 没有拉黑记录的用户不过滤
	got, err = Apply(ctx, NewUserBlock(adapter, ""), cands, &core.RecommendContext{UserID: "v"}, lookup)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestExpr(t *testing.T) {
	f, err := NewExpr("no_books_on_mobile", `item.category == "books" && ctx.device == "mobile"`)
	require.NoError(t, err)
	lookup := itemsLookup(&core.Item{ID: "a", Category: "books"}, &core.Item{ID: "b", Category: "music"})
	cands := []core.Candidate{{ItemID: "a"}, {ItemID: "b"}}

	got, err := Apply(context.Background(), f, cands, &core.RecommendContext{Device: "mobile"}, lookup)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, core.CandidateIDs(got))

	got, err = Apply(context.Background(), f, cands, &core.RecommendContext{Device: "web"}, lookup)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = NewExpr("bad", "item.category ==")
	assert.True(t, core.IsConfiguration(err))
}
