package boost

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

func lookupOf(items ...*core.Item) core.ItemLookup {
	return core.ItemLookupFunc(func(_ context.Context, ids []string) (map[string]*core.Item, error) {
		out := make(map[string]*core.Item)
		for _, it := range items {
			out[it.ID] = it
		}
		return out, nil
	})
}

func TestBoosters(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)
	items := []*core.Item{
		{ID: "cat", Category: "books"},
		{ID: "tag", Category: "music", Tags: []string{"jazz"}},
		{ID: "both", Category: "books", Tags: []string{"jazz"}},
		{ID: "promo", Promotional: true},
		{ID: "promo_open", Promotional: true, PromoEndsAt: &future},
		{ID: "promo_over", Promotional: true, PromoEndsAt: &past},
		{ID: "fresh", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "old", CreatedAt: now.Add(-8 * 24 * time.Hour)},
	}
	lookup := lookupOf(items...)
	cands := make([]core.Candidate, 0, len(items)+1)
	for _, it := range items {
		cands = append(cands, core.Candidate{ItemID: it.ID, Score: 1})
	}
	cands = append(cands, core.Candidate{ItemID: "ghost", Score: 1})

	rctx := &core.RecommendContext{
		UserID: "u",
		User:   &core.User{ID: "u", FavoriteCategories: []string{"books"}, FavoriteTags: []string{"jazz"}},
		Now:    now,
	}

	tests := []struct {
		name string
		b    Booster
		want map[string]float64
	}{
		{"preferences", &Preferences{}, map[string]float64{"cat": 1.4, "tag": 1.2, "both": 1.4 * 1.2}},
		{"promotional", &Promotional{}, map[string]float64{"promo": 1.5, "promo_open": 1.5}},
		{"new items", &NewItems{}, map[string]float64{"fresh": 1.3}},
		{"custom factor", &Promotional{BoostFactor: 2}, map[string]float64{"promo": 2, "promo_open": 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Apply(context.Background(), tt.b, cands, rctx, lookup)
			require.NoError(t, err)
			// id 与顺序不变
			require.Equal(t, core.CandidateIDs(cands), core.CandidateIDs(got))
			for _, c := range got {
				want, ok := tt.want[c.ItemID]
				if !ok {
					want = 1
				}
				assert.InDelta(t, want, c.Score, 1e-9, c.ItemID)
			}
		})
	}
}

func TestPromotional_UsesClockWithoutRequestTime(t *testing.T) {
	end := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	clock := core.NewFixedClock(end)
	b := &Promotional{Clock: clock}
	it := &core.Item{ID: "p", Promotional: true, PromoEndsAt: &end}

	f, err := b.Factor(context.Background(), nil, it, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.5, f)

	clock.Advance(time.Second)
	f, err = b.Factor(context.Background(), nil, it, 1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, f)
}

func TestExpr(t *testing.T) {
	b, err := NewExpr("high_score_books", `item.category == "books" && score >= 0.5`, 2)
	require.NoError(t, err)
	lookup := lookupOf(&core.Item{ID: "a", Category: "books"}, &core.Item{ID: "b", Category: "books"})
	got, err := Apply(context.Background(), b, []core.Candidate{{ItemID: "a", Score: 0.5}, {ItemID: "b", Score: 0.4}}, nil, lookup)
	require.NoError(t, err)
	assert.Equal(t, []core.Candidate{{ItemID: "a", Score: 1}, {ItemID: "b", Score: 0.4}}, got)

	_, err = NewExpr("zero", "true", 0)
	assert.True(t, core.IsConfiguration(err))
}
