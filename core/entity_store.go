package core

import (
	"context"
	"time"
)

// EntityStore 是实体存储的领域接口：用户、物品与交互日志。
//
// 推荐核心只读；写路径（追加交互、更新物品）由 InteractionWriter / ItemWriter 提供。
// 查询失败时实现应返回 UNAVAILABLE；GetUser/GetItem 在实体不存在时返回 NOT_FOUND。
type EntityStore interface {
	GetUser(ctx context.Context, userID string) (*User, error)
	GetItem(ctx context.Context, itemID string) (*Item, error)

	// GetItems 批量读取物品，不存在的 id 不出现在结果中
	GetItems(ctx context.Context, itemIDs []string) (map[string]*Item, error)

	ListUsers(ctx context.Context) ([]*User, error)
	ListItems(ctx context.Context) ([]*Item, error)

	InteractionsByUser(ctx context.Context, userID string) ([]Interaction, error)
	InteractionsByItem(ctx context.Context, itemID string) ([]Interaction, error)

	// InteractionsBetween 返回 (from, to] 区间内的交互
	InteractionsBetween(ctx context.Context, from, to time.Time) ([]Interaction, error)

	AllInteractions(ctx context.Context) ([]Interaction, error)
}

// InteractionWriter 追加交互记录。
type InteractionWriter interface {
	AppendInteraction(ctx context.Context, in Interaction) error
}

// ItemWriter 新增或覆盖物品。
type ItemWriter interface {
	PutItem(ctx context.Context, item *Item) error
}

// ItemLookup 是规则在打分后查询物品属性的只读接口。
type ItemLookup interface {
	// LookupItems 返回已知物品；未知 id 不出现在结果中
	LookupItems(ctx context.Context, itemIDs []string) (map[string]*Item, error)
}

// ItemLookupFunc 将函数适配为 ItemLookup。
type ItemLookupFunc func(ctx context.Context, itemIDs []string) (map[string]*Item, error)

func (f ItemLookupFunc) LookupItems(ctx context.Context, itemIDs []string) (map[string]*Item, error) {
	return f(ctx, itemIDs)
}

// EntityItemLookup 基于 EntityStore 的 ItemLookup。
func EntityItemLookup(es EntityStore) ItemLookup {
	return ItemLookupFunc(es.GetItems)
}

// PurchaseLookup 查询用户是否已购买某些物品（供已购过滤规则使用）。
type PurchaseLookup interface {
	PurchasedItems(ctx context.Context, userID string) (map[string]struct{}, error)
}

// EntityPurchaseLookup 基于 EntityStore 交互日志的 PurchaseLookup。
func EntityPurchaseLookup(es EntityStore) PurchaseLookup {
	return entityPurchaseLookup{es: es}
}

type entityPurchaseLookup struct {
	es EntityStore
}

func (l entityPurchaseLookup) PurchasedItems(ctx context.Context, userID string) (map[string]struct{}, error) {
	ins, err := l.es.InteractionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]struct{})
	for _, in := range ins {
		if in.Type == InteractionPurchase {
			out[in.ItemID] = struct{}{}
		}
	}
	return out, nil
}
