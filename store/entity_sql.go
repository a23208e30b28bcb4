package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	_ "modernc.org/sqlite"

	"github.com/rushteam/recengine/core"
)

const sqlSchema = `
CREATE TABLE IF NOT EXISTS users (
	id                  TEXT PRIMARY KEY,
	preferences         TEXT NOT NULL DEFAULT '{}',
	favorite_categories TEXT NOT NULL DEFAULT '[]',
	favorite_tags       TEXT NOT NULL DEFAULT '[]',
	age                 INTEGER,
	country             TEXT NOT NULL DEFAULT '',
	created_at          INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS items (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	tags              TEXT NOT NULL DEFAULT '[]',
	description       TEXT NOT NULL DEFAULT '',
	attributes        TEXT NOT NULL DEFAULT '{}',
	created_at        INTEGER NOT NULL DEFAULT 0,
	in_stock          INTEGER NOT NULL DEFAULT 1,
	promotional       INTEGER NOT NULL DEFAULT 0,
	promo_ends_at     INTEGER,
	min_age           INTEGER NOT NULL DEFAULT 0,
	allowed_countries TEXT NOT NULL DEFAULT '[]',
	blocked_countries TEXT NOT NULL DEFAULT '[]',
	popularity        REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS interactions (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id TEXT NOT NULL,
	item_id TEXT NOT NULL,
	type    TEXT NOT NULL,
	rating  REAL,
	weight  REAL NOT NULL DEFAULT 0,
	ts      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_user ON interactions(user_id);
CREATE INDEX IF NOT EXISTS idx_interactions_item ON interactions(item_id);
CREATE INDEX IF NOT EXISTS idx_interactions_ts ON interactions(ts);
`

const (
	userColumns        = `id, preferences, favorite_categories, favorite_tags, age, country, created_at`
	itemColumns        = `id, title, category, tags, description, attributes, created_at, in_stock, promotional, promo_ends_at, min_age, allowed_countries, blocked_countries, popularity`
	interactionColumns = `user_id, item_id, type, rating, weight, ts`
)

// SQLEntityStore 是基于 database/sql + SQLite（modernc.org/sqlite，纯 Go）的 EntityStore。
// 时间以 UTC 纳秒整数存储；列表/映射类字段以 JSON 文本存储。
type SQLEntityStore struct {
	db *sql.DB
}

// OpenSQLEntityStore 打开（必要时创建）SQLite 数据库并初始化表结构。
// path 为 ":memory:" 时使用进程内数据库。
func OpenSQLEntityStore(ctx context.Context, path string) (*SQLEntityStore, error) {
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: open %s", path)
	}
	if path == ":memory:" {
		// 每个连接对应独立的内存库，限制为单连接
		db.SetMaxOpenConns(1)
	}

	s, err := NewSQLEntityStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLEntityStore 使用已有连接并初始化表结构。
func NewSQLEntityStore(ctx context.Context, db *sql.DB) (*SQLEntityStore, error) {
	for _, pragma := range []string{"PRAGMA busy_timeout=5000", "PRAGMA foreign_keys=ON"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: %s", pragma)
		}
	}
	if _, err := db.ExecContext(ctx, sqlSchema); err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: bootstrap schema")
	}
	return &SQLEntityStore{db: db}, nil
}

func (s *SQLEntityStore) Close() error {
	return s.db.Close()
}

// PutUser 新增或覆盖用户。
func (s *SQLEntityStore) PutUser(ctx context.Context, u *core.User) error {
	if u == nil || u.ID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: user id is empty")
	}
	prefs, err := marshalText(u.Preferences, "{}")
	if err != nil {
		return err
	}
	cats, err := marshalText(u.FavoriteCategories, "[]")
	if err != nil {
		return err
	}
	tags, err := marshalText(u.FavoriteTags, "[]")
	if err != nil {
		return err
	}
	var age sql.NullInt64
	if u.Age != nil {
		age = sql.NullInt64{Int64: int64(*u.Age), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		u.ID, prefs, cats, tags, age, u.Country, toNanos(u.CreatedAt))
	if err != nil {
		return core.NewUnavailableError(core.ModuleStore, err, "sqlite: put user %s", u.ID)
	}
	return nil
}

// PutItem 新增或覆盖物品。
func (s *SQLEntityStore) PutItem(ctx context.Context, it *core.Item) error {
	if it == nil || it.ID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: item id is empty")
	}
	tags, err := marshalText(it.Tags, "[]")
	if err != nil {
		return err
	}
	attrs, err := marshalText(it.Attributes, "{}")
	if err != nil {
		return err
	}
	allowed, err := marshalText(it.AllowedCountries, "[]")
	if err != nil {
		return err
	}
	blocked, err := marshalText(it.BlockedCountries, "[]")
	if err != nil {
		return err
	}
	var promoEnds sql.NullInt64
	if it.PromoEndsAt != nil {
		promoEnds = sql.NullInt64{Int64: toNanos(*it.PromoEndsAt), Valid: true}
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO items (`+itemColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		it.ID, it.Title, it.Category, tags, it.Description, attrs, toNanos(it.CreatedAt),
		boolInt(it.InStock), boolInt(it.Promotional), promoEnds, it.MinAge, allowed, blocked, it.Popularity)
	if err != nil {
		return core.NewUnavailableError(core.ModuleStore, err, "sqlite: put item %s", it.ID)
	}
	return nil
}

// AppendInteraction 追加交互记录。
func (s *SQLEntityStore) AppendInteraction(ctx context.Context, in core.Interaction) error {
	if in.UserID == "" || in.ItemID == "" {
		return core.NewDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, "store: interaction requires user and item id")
	}
	var rating sql.NullFloat64
	if in.Rating != nil {
		rating = sql.NullFloat64{Float64: *in.Rating, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO interactions (`+interactionColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		in.UserID, in.ItemID, string(in.Type), rating, in.Weight, toNanos(in.Timestamp))
	if err != nil {
		return core.NewUnavailableError(core.ModuleStore, err, "sqlite: append interaction %s/%s", in.UserID, in.ItemID)
	}
	return nil
}

func (s *SQLEntityStore) GetUser(ctx context.Context, userID string) (*core.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, userID)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError(core.ModuleStore, "user", userID)
	}
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: get user %s", userID)
	}
	return u, nil
}

func (s *SQLEntityStore) GetItem(ctx context.Context, itemID string) (*core.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, itemID)
	it, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.NewNotFoundError(core.ModuleStore, "item", itemID)
	}
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: get item %s", itemID)
	}
	return it, nil
}

func (s *SQLEntityStore) GetItems(ctx context.Context, itemIDs []string) (map[string]*core.Item, error) {
	out := make(map[string]*core.Item, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(itemIDs)), ",")
	args := make([]any, len(itemIDs))
	for i, id := range itemIDs {
		args[i] = id
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: get %d items", len(itemIDs))
	}
	defer rows.Close()
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: scan item")
		}
		out[it.ID] = it
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: iterate items")
	}
	return out, nil
}

func (s *SQLEntityStore) ListUsers(ctx context.Context) ([]*core.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: list users")
	}
	defer rows.Close()
	var out []*core.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: scan user")
		}
		out = append(out, u)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: iterate users")
	}
	return out, nil
}

func (s *SQLEntityStore) ListItems(ctx context.Context) ([]*core.Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY id`)
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: list items")
	}
	defer rows.Close()
	var out []*core.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: scan item")
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: iterate items")
	}
	return out, nil
}

func (s *SQLEntityStore) InteractionsByUser(ctx context.Context, userID string) ([]core.Interaction, error) {
	return s.queryInteractions(ctx, `WHERE user_id = ? ORDER BY id`, userID)
}

func (s *SQLEntityStore) InteractionsByItem(ctx context.Context, itemID string) ([]core.Interaction, error) {
	return s.queryInteractions(ctx, `WHERE item_id = ? ORDER BY id`, itemID)
}

func (s *SQLEntityStore) InteractionsBetween(ctx context.Context, from, to time.Time) ([]core.Interaction, error) {
	return s.queryInteractions(ctx, `WHERE ts > ? AND ts <= ? ORDER BY id`, toNanos(from), toNanos(to))
}

func (s *SQLEntityStore) AllInteractions(ctx context.Context) ([]core.Interaction, error) {
	return s.queryInteractions(ctx, `ORDER BY id`)
}

func (s *SQLEntityStore) queryInteractions(ctx context.Context, where string, args ...any) ([]core.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions `+where, args...)
	if err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: query interactions")
	}
	defer rows.Close()
	var out []core.Interaction
	for rows.Next() {
		var (
			in     core.Interaction
			typ    string
			rating sql.NullFloat64
			ts     int64
		)
		if err := rows.Scan(&in.UserID, &in.ItemID, &typ, &rating, &in.Weight, &ts); err != nil {
			return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: scan interaction")
		}
		in.Type = core.InteractionType(typ)
		if rating.Valid {
			r := rating.Float64
			in.Rating = &r
		}
		in.Timestamp = fromNanos(ts)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, core.NewUnavailableError(core.ModuleStore, err, "sqlite: iterate interactions")
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*core.User, error) {
	var (
		u                 core.User
		prefs, cats, tags string
		age               sql.NullInt64
		createdAt         int64
	)
	if err := row.Scan(&u.ID, &prefs, &cats, &tags, &age, &u.Country, &createdAt); err != nil {
		return nil, err
	}
	if err := unmarshalText(prefs, &u.Preferences); err != nil {
		return nil, err
	}
	if err := unmarshalText(cats, &u.FavoriteCategories); err != nil {
		return nil, err
	}
	if err := unmarshalText(tags, &u.FavoriteTags); err != nil {
		return nil, err
	}
	if age.Valid {
		a := int(age.Int64)
		u.Age = &a
	}
	u.CreatedAt = fromNanos(createdAt)
	return &u, nil
}

func scanItem(row rowScanner) (*core.Item, error) {
	var (
		it                            core.Item
		tags, attrs, allowed, blocked string
		createdAt                     int64
		inStock, promotional          int
		promoEnds                     sql.NullInt64
	)
	if err := row.Scan(&it.ID, &it.Title, &it.Category, &tags, &it.Description, &attrs, &createdAt,
		&inStock, &promotional, &promoEnds, &it.MinAge, &allowed, &blocked, &it.Popularity); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		text string
		dst  any
	}{
		{tags, &it.Tags},
		{attrs, &it.Attributes},
		{allowed, &it.AllowedCountries},
		{blocked, &it.BlockedCountries},
	} {
		if err := unmarshalText(f.text, f.dst); err != nil {
			return nil, err
		}
	}
	it.CreatedAt = fromNanos(createdAt)
	it.InStock = inStock != 0
	it.Promotional = promotional != 0
	if promoEnds.Valid {
		t := fromNanos(promoEnds.Int64)
		it.PromoEndsAt = &t
	}
	return &it, nil
}

func marshalText(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", core.WrapDomainError(core.ModuleStore, core.ErrorCodeInvalidInput, err, "store: encode column")
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

func unmarshalText(s string, dst any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), dst)
}

func toNanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var (
	_ core.EntityStore       = (*SQLEntityStore)(nil)
	_ core.InteractionWriter = (*SQLEntityStore)(nil)
	_ core.ItemWriter        = (*SQLEntityStore)(nil)
)
