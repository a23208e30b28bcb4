package recall

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
	"github.com/rushteam/recengine/store"
)

func TestTrending_Top(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	es := store.NewMemoryEntityStore()
	add := func(item string, typ core.InteractionType, ago time.Duration) {
		require.NoError(t, es.AppendInteraction(ctx, core.Interaction{
			UserID: "u", ItemID: item, Type: typ, Timestamp: now.Add(-ago),
		}))
	}
	add("X", core.InteractionPurchase, time.Hour)
	add("Y", core.InteractionView, 2*time.Hour)
	add("Y", core.InteractionView, 3*time.Hour)
	add("Y", core.InteractionView, 4*time.Hour)
	add("P", core.InteractionRating, 5*time.Hour)
	add("W", core.InteractionView, 0)
	add("Z", core.InteractionClick, 30*time.Hour)
	add("EDGE", core.InteractionPurchase, 24*time.Hour)

	r := &Trending{Entities: es, Clock: core.NewFixedClock(now)}

	tests := []struct {
		name   string
		window time.Duration
		limit  int
		want   []core.Candidate
	}{
		{
			name:   "day window",
			window: 24 * time.Hour,
			want: []core.Candidate{
				{ItemID: "X", Score: 5}, {ItemID: "Y", Score: 3}, {ItemID: "P", Score: 3}, {ItemID: "W", Score: 1},
			},
		},
		{
			name:   "limited",
			window: 24 * time.Hour,
			limit:  2,
			want:   []core.Candidate{{ItemID: "X", Score: 5}, {ItemID: "Y", Score: 3}},
		},
		{
			name:   "wide window",
			window: 48 * time.Hour,
			limit:  2,
			want:   []core.Candidate{{ItemID: "EDGE", Score: 5}, {ItemID: "X", Score: 5}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Top(ctx, tt.window, tt.limit)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := r.Top(ctx, 0, 10)
	assert.True(t, core.IsInvalidInput(err))
}

func TestRankTrending_CustomWeights(t *testing.T) {
	ins := []core.Interaction{
		{ItemID: "a", Type: core.InteractionView},
		{ItemID: "b", Type: core.InteractionPurchase},
	}
	weights := core.InteractionWeights{core.InteractionView: 10, core.InteractionPurchase: 1}
	got := RankTrending(ins, weights)
	assert.Equal(t, []string{"a", "b"}, core.CandidateIDs(got))
}
