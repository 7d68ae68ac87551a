// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// PasswordHashはAPIレスポンスには決して含めない。
type User struct {
	ID           int64
	Email        string
	PasswordHash string
	DisplayName  string
	Bio          string
	AvatarURL    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserProfilePatch はプロフィール部分更新のパッチを表す。
// nilのフィールドは変更しない。
type UserProfilePatch struct {
	DisplayName *string
	Bio         *string
	AvatarURL   *string
}

// IsEmpty は全フィールドが未指定の場合にtrueを返す。
func (p UserProfilePatch) IsEmpty() bool {
	return p.DisplayName == nil && p.Bio == nil && p.AvatarURL == nil
}
