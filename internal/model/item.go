package model

import "time"

// Item は汎用CRUDリソースを表す。
// 投稿やユーザーと異なり所有者を持たない単純なエンティティ。
type Item struct {
	ID          int64
	Title       string
	Description string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ItemPatch はアイテム部分更新のパッチを表す。
// nilのフィールドは変更しない。
type ItemPatch struct {
	Title       *string
	Description *string
	IsActive    *bool
}

// IsEmpty は全フィールドが未指定の場合にtrueを返す。
func (p ItemPatch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.IsActive == nil
}
