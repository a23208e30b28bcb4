package rules

import (
	"context"

	"github.com/rushteam/recengine/core"
)

// memoLookup 是单次 Apply 内的物品查询缓存：候选物品一次性预取，规则之间共享。
type memoLookup struct {
	inner core.ItemLookup
	items map[string]*core.Item
}

func prefetch(ctx context.Context, inner core.ItemLookup, ids []string) (*memoLookup, error) {
	m := &memoLookup{inner: inner, items: map[string]*core.Item{}}
	if inner == nil {
		return m, nil
	}
	items, err := inner.LookupItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		// 查不到的 id 也记录下来，避免重复查询
		m.items[id] = items[id]
	}
	return m, nil
}

func (m *memoLookup) LookupItems(ctx context.Context, ids []string) (map[string]*core.Item, error) {
	out := make(map[string]*core.Item, len(ids))
	var missing []string
	for _, id := range ids {
		it, known := m.items[id]
		if !known {
			missing = append(missing, id)
			continue
		}
		if it != nil {
			out[id] = it
		}
	}
	if len(missing) > 0 && m.inner != nil {
		extra, err := m.inner.LookupItems(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, it := range extra {
			out[id] = it
		}
	}
	return out, nil
}
