package recall

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/recengine/core"
)

func rating(v float64) *float64 { return &v }

func buildTestMatrix(ins ...core.Interaction) *Matrix {
	return BuildMatrix(ins, nil, time.Unix(0, 0))
}

func TestBuildMatrix(t *testing.T) {
	m := buildTestMatrix(
		core.Interaction{UserID: "u", ItemID: "a", Type: core.InteractionView},
		core.Interaction{UserID: "u", ItemID: "a", Type: core.InteractionPurchase},
		core.Interaction{UserID: "u", ItemID: "b", Type: core.InteractionRating, Rating: rating(4)},
		core.Interaction{UserID: "v", ItemID: "a", Type: core.InteractionClick},
	)
	// 同一 (user,item) 取最大权重
	assert.Equal(t, 5.0, m.UserItems("u")["a"])
	assert.Equal(t, 4.0, m.UserItems("u")["b"])
	assert.Equal(t, 2.0, m.ItemUsers("a")["v"])
	assert.Equal(t, 3, m.UserCount("u"))
	assert.Equal(t, 3, m.ItemCount("a"))
	assert.Equal(t, 2, m.NumUsers())
	assert.Equal(t, 2, m.NumItems())
}

// 用户 U 对 A 评分 5（购买）、对 B 评分 2（浏览）；最相似的用户 V 对 C 评分 4
func endToEndMatrix() *Matrix {
	return buildTestMatrix(
		core.Interaction{UserID: "U", ItemID: "A", Type: core.InteractionPurchase, Rating: rating(5)},
		core.Interaction{UserID: "U", ItemID: "B", Type: core.InteractionView, Rating: rating(2)},
		core.Interaction{UserID: "V", ItemID: "A", Type: core.InteractionRating, Rating: rating(4)},
		core.Interaction{UserID: "V", ItemID: "C", Type: core.InteractionRating, Rating: rating(4)},
		core.Interaction{UserID: "W", ItemID: "B", Type: core.InteractionRating, Rating: rating(2)},
		core.Interaction{UserID: "W", ItemID: "D", Type: core.InteractionRating, Rating: rating(1)},
	)
}

func TestUserBasedCF(t *testing.T) {
	m := endToEndMatrix()
	tests := []struct {
		name string
		cf   UserBasedCF
		want []core.Candidate
	}{
		{
			name: "single nearest neighbour",
			cf:   UserBasedCF{KNeighbors: 1, MinInteractions: 2},
			want: []core.Candidate{{ItemID: "C", Score: 4}},
		},
		{
			name: "two neighbours",
			cf:   UserBasedCF{KNeighbors: 2, MinInteractions: 2},
			want: []core.Candidate{{ItemID: "C", Score: 4}, {ItemID: "D", Score: 1}},
		},
		{
			name: "cold start below min interactions",
			cf:   UserBasedCF{KNeighbors: 2, MinInteractions: 3},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cf.Score(m, "U", 10)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i := range tt.want {
				assert.Equal(t, tt.want[i].ItemID, got[i].ItemID)
				assert.InDelta(t, tt.want[i].Score, got[i].Score, 1e-9)
			}
		})
	}
}

func TestUserBasedCF_UnknownMetric(t *testing.T) {
	cf := UserBasedCF{Metric: "jaccard"}
	_, err := cf.Score(endToEndMatrix(), "U", 10)
	assert.True(t, core.IsConfiguration(err))
}

func TestItemBasedCF_TieBreakByInteractionCount(t *testing.T) {
	m := buildTestMatrix(
		core.Interaction{UserID: "U", ItemID: "A", Type: core.InteractionView},
		core.Interaction{UserID: "V1", ItemID: "A", Type: core.InteractionView},
		core.Interaction{UserID: "V1", ItemID: "C", Type: core.InteractionView},
		core.Interaction{UserID: "V2", ItemID: "A", Type: core.InteractionView},
		core.Interaction{UserID: "V2", ItemID: "D", Type: core.InteractionView},
		core.Interaction{UserID: "V3", ItemID: "C", Type: core.InteractionView},
	)
	cf := ItemBasedCF{MinInteractions: 1}
	got, err := cf.Score(m, "U", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// C 与 D 分数相同（单个种子物品的加权平均均为 1），C 的原始交互数更多
	assert.Equal(t, []string{"C", "D"}, core.CandidateIDs(got))
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.InDelta(t, 1.0, got[1].Score, 1e-9)

	similar := m.SimilarItems("A", 1)
	require.Len(t, similar, 1)
	assert.Equal(t, "D", similar[0].ItemID)
	assert.InDelta(t, 1/math.Sqrt(3), similar[0].Score, 1e-9)
}

func TestItemBasedCF_ColdItemsExcluded(t *testing.T) {
	m := endToEndMatrix()
	tests := []struct {
		name string
		cf   ItemBasedCF
		want []string
	}{
		// C 与 D 各只有一次交互，低于 MinInteractions
		{"defaults to user threshold", ItemBasedCF{MinInteractions: 2}, nil},
		{"explicit item threshold", ItemBasedCF{MinInteractions: 2, MinItemInteractions: 1}, []string{"C", "D"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cf.Score(m, "U", 0)
			require.NoError(t, err)
			if tt.want == nil {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, tt.want, core.CandidateIDs(got))
		})
	}
}

func TestUserBasedCF_TieBreakByItemID(t *testing.T) {
	m := buildTestMatrix(
		core.Interaction{UserID: "U", ItemID: "A", Type: core.InteractionView},
		core.Interaction{UserID: "V", ItemID: "A", Type: core.InteractionView},
		core.Interaction{UserID: "V", ItemID: "z", Type: core.InteractionView},
		core.Interaction{UserID: "V", ItemID: "y", Type: core.InteractionView},
	)
	cf := UserBasedCF{MinInteractions: 1}
	got, err := cf.Score(m, "U", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "z"}, core.CandidateIDs(got))
}

func TestCollaborativeRecall_BothAverages(t *testing.T) {
	m := endToEndMatrix()
	r := &CollaborativeRecall{
		Matrix: func() *Matrix { return m },
		User:   UserBasedCF{KNeighbors: 1, MinInteractions: 2},
		Item:   ItemBasedCF{MinInteractions: 2, MinItemInteractions: 1},
	}
	userOnly, err := r.Score(m, "U", CFModeUser, 10)
	require.NoError(t, err)
	itemOnly, err := r.Score(m, "U", CFModeItem, 10)
	require.NoError(t, err)
	both, err := r.Score(m, "U", CFModeBoth, 10)
	require.NoError(t, err)

	byID := func(list []core.Candidate) map[string]float64 {
		out := make(map[string]float64)
		for _, c := range list {
			out[c.ItemID] = c.Score
		}
		return out
	}
	u, i, b := byID(userOnly), byID(itemOnly), byID(both)
	for id, score := range b {
		us, inU := u[id]
		is, inI := i[id]
		switch {
		case inU && inI:
			assert.InDelta(t, (us+is)/2, score, 1e-9, id)
		case inU:
			assert.InDelta(t, us, score, 1e-9, id)
		default:
			require.True(t, inI, id)
			assert.InDelta(t, is, score, 1e-9, id)
		}
	}
	assert.True(t, core.HasUniqueIDs(both))

	_, err = ParseCFMode("hybrid")
	assert.True(t, core.IsConfiguration(err))
	mode, err := ParseCFMode("")
	require.NoError(t, err)
	assert.Equal(t, CFModeUser, mode)
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		fn   func(a, b map[string]float64) float64
		a, b map[string]float64
		want float64
	}{
		{"cosine identical", CosineSimilarity, map[string]float64{"x": 1, "y": 2}, map[string]float64{"x": 1, "y": 2}, 1},
		{"cosine disjoint", CosineSimilarity, map[string]float64{"x": 1}, map[string]float64{"y": 1}, 0},
		{"cosine empty", CosineSimilarity, map[string]float64{}, map[string]float64{"y": 1}, 0},
		{"pearson linear", PearsonSimilarity, map[string]float64{"a": 1, "b": 2, "c": 3}, map[string]float64{"a": 2, "b": 4, "c": 6}, 1},
		{"pearson inverse", PearsonSimilarity, map[string]float64{"a": 1, "b": 2, "c": 3}, map[string]float64{"a": 3, "b": 2, "c": 1}, -1},
		{"pearson one common", PearsonSimilarity, map[string]float64{"a": 1, "b": 2}, map[string]float64{"a": 2, "c": 4}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.fn(tt.a, tt.b), 1e-9)
		})
	}
}
