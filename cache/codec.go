package cache

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/rushteam/recengine/core"
)

// Entry 是缓存中的推荐结果。
type Entry struct {
	Candidates []core.Candidate `json:"candidates"`
	ComputedAt time.Time        `json:"computed_at"`
}

func encodeEntry(e Entry) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry(b []byte) (Entry, error) {
	var e Entry
	err := json.Unmarshal(b, &e)
	return e, err
}
