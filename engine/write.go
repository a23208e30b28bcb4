package engine

import (
	"context"
	"strings"

	"github.com/rushteam/recengine/core"
)

// InvalidateUser 失效用户特征（含 pair 特征）与该用户的全部推荐缓存。
func (e *Engine) InvalidateUser(ctx context.Context, userID string) error {
	if err := e.features.InvalidateUserFeatures(ctx, userID); err != nil {
		return err
	}
	return e.recs.InvalidateUser(ctx, userID)
}

// InvalidateItem 失效物品特征与包含该物品的推荐缓存（粒度由缓存的 ItemPolicy 决定）。
func (e *Engine) InvalidateItem(ctx context.Context, itemID string) error {
	if err := e.features.InvalidateItemFeatures(ctx, itemID); err != nil {
		return err
	}
	return e.recs.InvalidateItem(ctx, itemID)
}

// InvalidateAll 清空特征与推荐缓存。快照不受影响，需要时调用 Rebuild。
func (e *Engine) InvalidateAll(ctx context.Context) error {
	if err := e.features.InvalidateAll(ctx); err != nil {
		return err
	}
	return e.recs.InvalidateAll(ctx)
}

// RecordInteraction 追加一条交互并同步失效相关缓存：用户特征、物品特征、用户推荐。
// 实体存储不支持写入时返回 NOT_SUPPORTED；时间戳为空时取当前时钟。
// 协同过滤快照不会立即更新，下次 Rebuild 后生效。
func (e *Engine) RecordInteraction(ctx context.Context, in core.Interaction) error {
	w, ok := e.entities.(core.InteractionWriter)
	if !ok {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: entity store does not accept interactions")
	}
	if strings.TrimSpace(in.UserID) == "" || strings.TrimSpace(in.ItemID) == "" {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: interaction requires user and item ids")
	}
	if _, err := core.ParseInteractionType(string(in.Type)); err != nil {
		return err
	}
	if in.Rating != nil && *in.Rating < 0 {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: rating must not be negative")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = e.clock.Now()
	}
	if err := w.AppendInteraction(ctx, in); err != nil {
		return err
	}

	if err := e.features.InvalidateUserFeatures(ctx, in.UserID); err != nil {
		return err
	}
	if err := e.features.InvalidateItemFeatures(ctx, in.ItemID); err != nil {
		return err
	}
	if err := e.recs.InvalidateUser(ctx, in.UserID); err != nil {
		return err
	}
	e.logger.Debug().
		Str("user_id", in.UserID).
		Str("item_id", in.ItemID).
		Str("type", string(in.Type)).
		Msg("interaction recorded")
	return nil
}

// UpdateItem 新增或覆盖物品并失效相关缓存。内容语料标记为过期，下次 Rebuild 后生效。
func (e *Engine) UpdateItem(ctx context.Context, item *core.Item) error {
	w, ok := e.entities.(core.ItemWriter)
	if !ok {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeNotSupported, "engine: entity store does not accept items")
	}
	if item == nil || strings.TrimSpace(item.ID) == "" {
		return core.NewDomainError(core.ModuleEngine, core.ErrorCodeInvalidInput, "engine: item requires an id")
	}
	if err := w.PutItem(ctx, item); err != nil {
		return err
	}
	if err := e.InvalidateItem(ctx, item.ID); err != nil {
		return err
	}
	e.corpusStale.Store(true)
	return nil
}
