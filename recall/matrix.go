package recall

import (
	"math"
	"sort"
	"time"

	"github.com/rushteam/recengine/core"
)

// Matrix 是不可变的稀疏 用户×物品 交互权重矩阵（双向邻接表）。
//
// 取值：显式评分优先，否则按交互类型默认权重；同一 (user, item) 多次交互取最大值。
// 构建完成后只读，可被并发请求共享；重建时构建新矩阵并原子替换。
type Matrix struct {
	users map[string]map[string]float64 // user → item → weight
	items map[string]map[string]float64 // item → user → weight

	userCounts map[string]int // 原始交互条数
	itemCounts map[string]int

	userNorms map[string]float64
	itemNorms map[string]float64

	builtAt time.Time
}

// BuildMatrix 从交互日志构建矩阵。
func BuildMatrix(ins []core.Interaction, weights core.InteractionWeights, builtAt time.Time) *Matrix {
	if weights == nil {
		weights = core.DefaultInteractionWeights()
	}
	m := &Matrix{
		users:      make(map[string]map[string]float64),
		items:      make(map[string]map[string]float64),
		userCounts: make(map[string]int),
		itemCounts: make(map[string]int),
		userNorms:  make(map[string]float64),
		itemNorms:  make(map[string]float64),
		builtAt:    builtAt,
	}
	for _, in := range ins {
		w := weights.Value(in)
		m.userCounts[in.UserID]++
		m.itemCounts[in.ItemID]++
		row := m.users[in.UserID]
		if row == nil {
			row = make(map[string]float64)
			m.users[in.UserID] = row
		}
		if old, ok := row[in.ItemID]; !ok || w > old {
			row[in.ItemID] = w
		}
	}
	for u, row := range m.users {
		var sq float64
		for it, w := range row {
			sq += w * w
			col := m.items[it]
			if col == nil {
				col = make(map[string]float64)
				m.items[it] = col
			}
			col[u] = w
		}
		m.userNorms[u] = math.Sqrt(sq)
	}
	for it, col := range m.items {
		var sq float64
		for _, w := range col {
			sq += w * w
		}
		m.itemNorms[it] = math.Sqrt(sq)
	}
	return m
}

// UserItems 返回用户的 item → weight（只读，调用方不得修改）。
func (m *Matrix) UserItems(userID string) map[string]float64 { return m.users[userID] }

// ItemUsers 返回物品的 user → weight（只读，调用方不得修改）。
func (m *Matrix) ItemUsers(itemID string) map[string]float64 { return m.items[itemID] }

// UserCount 返回用户原始交互条数。
func (m *Matrix) UserCount(userID string) int { return m.userCounts[userID] }

// ItemCount 返回物品原始交互条数。
func (m *Matrix) ItemCount(itemID string) int { return m.itemCounts[itemID] }

func (m *Matrix) NumUsers() int { return len(m.users) }
func (m *Matrix) NumItems() int { return len(m.items) }

func (m *Matrix) BuiltAt() time.Time { return m.builtAt }

// sortCandidates 按 score 降序、原始交互数降序、item id 升序排序。
func sortCandidates(cands []core.Candidate, count func(string) int) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ca, cb := count(a.ItemID), count(b.ItemID)
		if ca != cb {
			return ca > cb
		}
		return a.ItemID < b.ItemID
	})
}
