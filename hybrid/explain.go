package hybrid

import "github.com/rushteam/recengine/core"

// Explanation 是单个物品在 weighted 合并下的得分拆解。
type Explanation struct {
	ItemID string  `json:"item_id"`
	Alpha  float64 `json:"alpha"`

	CollaborativeRaw        float64 `json:"collaborative_raw_score"`
	ContentRaw              float64 `json:"content_raw_score"`
	CollaborativeNormalized float64 `json:"collaborative_normalized_score"`
	ContentNormalized       float64 `json:"content_normalized_score"`

	CollaborativeContribution float64 `json:"collaborative_contribution"`
	ContentContribution       float64 `json:"content_contribution"`

	Final float64 `json:"final_score"`
}

// Explain 返回 itemID 在两路候选中的原始分、归一化分与各自贡献；不在某一路中的记为 0。
func Explain(collab, content []core.Candidate, itemID string, alpha float64) Explanation {
	collab = core.DedupCandidates(collab)
	content = core.DedupCandidates(content)
	e := Explanation{ItemID: itemID, Alpha: alpha}
	for _, c := range collab {
		if c.ItemID == itemID {
			e.CollaborativeRaw = c.Score
		}
	}
	for _, c := range content {
		if c.ItemID == itemID {
			e.ContentRaw = c.Score
		}
	}
	e.CollaborativeNormalized = Normalize(collab)[itemID]
	e.ContentNormalized = Normalize(content)[itemID]
	e.CollaborativeContribution = alpha * e.CollaborativeNormalized
	e.ContentContribution = (1 - alpha) * e.ContentNormalized
	e.Final = e.CollaborativeContribution + e.ContentContribution
	return e
}
