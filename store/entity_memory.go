package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rushteam/recengine/core"
)

// MemoryEntityStore 是内存实现的 EntityStore，同时支持写路径（追加交互、更新物品）。
// 返回的实体为副本，调用方修改不会影响存储内容。
type MemoryEntityStore struct {
	mu           sync.RWMutex
	users        map[string]*core.User
	items        map[string]*core.Item
	interactions []core.Interaction
	byUser       map[string][]int
	byItem       map[string][]int
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		users:  make(map[string]*core.User),
		items:  make(map[string]*core.Item),
		byUser: make(map[string][]int),
		byItem: make(map[string][]int),
	}
}

// PutUser 新增或覆盖用户。
func (s *MemoryEntityStore) PutUser(ctx context.Context, u *core.User) error {
	if u == nil || u.ID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: user id is empty")
	}
	cp := *u
	s.mu.Lock()
	s.users[u.ID] = &cp
	s.mu.Unlock()
	return nil
}

// PutItem 新增或覆盖物品。
func (s *MemoryEntityStore) PutItem(ctx context.Context, it *core.Item) error {
	if it == nil || it.ID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: item id is empty")
	}
	cp := *it
	s.mu.Lock()
	s.items[it.ID] = &cp
	s.mu.Unlock()
	return nil
}

// AppendInteraction 追加交互记录。
func (s *MemoryEntityStore) AppendInteraction(ctx context.Context, in core.Interaction) error {
	if in.UserID == "" || in.ItemID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: interaction requires user and item id")
	}
	s.mu.Lock()
	idx := len(s.interactions)
	s.interactions = append(s.interactions, in)
	s.byUser[in.UserID] = append(s.byUser[in.UserID], idx)
	s.byItem[in.ItemID] = append(s.byItem[in.ItemID], idx)
	s.mu.Unlock()
	return nil
}

func (s *MemoryEntityStore) GetUser(ctx context.Context, userID string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, core.NewNotFoundError(core.ModuleStore, "user", userID)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryEntityStore) GetItem(ctx context.Context, itemID string) (*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[itemID]
	if !ok {
		return nil, core.NewNotFoundError(core.ModuleStore, "item", itemID)
	}
	cp := *it
	return &cp, nil
}

func (s *MemoryEntityStore) GetItems(ctx context.Context, itemIDs []string) (map[string]*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*core.Item, len(itemIDs))
	for _, id := range itemIDs {
		if it, ok := s.items[id]; ok {
			cp := *it
			out[id] = &cp
		}
	}
	return out, nil
}

func (s *MemoryEntityStore) ListUsers(ctx context.Context) ([]*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.User, 0, len(s.users))
	for _, u := range s.users {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryEntityStore) ListItems(ctx context.Context) ([]*core.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Item, 0, len(s.items))
	for _, it := range s.items {
		cp := *it
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryEntityStore) InteractionsByUser(ctx context.Context, userID string) ([]core.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byUser[userID]), nil
}

func (s *MemoryEntityStore) InteractionsByItem(ctx context.Context, itemID string) ([]core.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byItem[itemID]), nil
}

func (s *MemoryEntityStore) InteractionsBetween(ctx context.Context, from, to time.Time) ([]core.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []core.Interaction
	for _, in := range s.interactions {
		if in.Timestamp.After(from) && !in.Timestamp.After(to) {
			out = append(out, in)
		}
	}
	return out, nil
}

func (s *MemoryEntityStore) AllInteractions(ctx context.Context) ([]core.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Interaction, len(s.interactions))
	copy(out, s.interactions)
	return out, nil
}

func (s *MemoryEntityStore) collect(idx []int) []core.Interaction {
	out := make([]core.Interaction, 0, len(idx))
	for _, i := range idx {
		out = append(out, s.interactions[i])
	}
	return out
}

var (
	_ core.EntityStore       = (*MemoryEntityStore)(nil)
	_ core.InteractionWriter = (*MemoryEntityStore)(nil)
	_ core.ItemWriter        = (*MemoryEntityStore)(nil)
)
