// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/ryohei/inkwell/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成し、IDとタイムスタンプが設定された状態で返す。
	// メールアドレス（小文字正規化済み）が既に存在する場合は
	// model.NewEmailTakenError()相当のエラーを返す。
	Create(ctx context.Context, user *model.User) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail は小文字正規化済みメールアドレスでユーザーを検索する。
	// 大文字小文字を区別せず一致させる。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// UpdateProfile はプロフィールを部分更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	UpdateProfile(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error)
}

// PostRepository は投稿データの永続化インターフェース。
// タグはドメイン層の文字列スライスとストレージのカンマ結合文字列を
// この境界で相互変換する。
type PostRepository interface {
	// Create は投稿を作成し、著者情報付きで返す。
	// post.PublishedAtは呼び出し側（サービス層）が設定する。
	Create(ctx context.Context, post *model.Post) (*model.PostWithAuthor, error)

	// FindByID は指定IDの投稿を著者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.PostWithAuthor, error)

	// List は検索条件に一致する投稿一覧を著者情報付きで返す。
	// created_at降順で、オフセット/リミットによるページネーションを行う。
	List(ctx context.Context, filter model.PostFilter) ([]*model.PostWithAuthor, error)

	// Update は投稿を部分更新し、更新後の投稿を著者情報付きで返す。
	// publishedAtがnilでない場合はpublished_atも設定する（初回公開時のみ
	// 渡される。サービス層が判定する）。見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, patch model.PostPatch, publishedAt *time.Time) (*model.PostWithAuthor, error)

	// Delete は指定IDの投稿を削除する。見つからない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// IncrementViewCount は閲覧数をストレージレベルの単一UPDATEで1増やす。
	// 並行する読み取りの下でも更新が失われない。
	IncrementViewCount(ctx context.Context, id int64) error
}

// ItemRepository はアイテムデータの永続化インターフェース。
type ItemRepository interface {
	// Create はアイテムを作成し、IDとタイムスタンプが設定された状態で返す。
	Create(ctx context.Context, item *model.Item) (*model.Item, error)

	// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Item, error)

	// List はアイテム一覧をcreated_at降順で返す。
	// activeOnlyがtrueの場合はis_active=trueのみを対象とする。
	List(ctx context.Context, offset, limit int, activeOnly bool) ([]*model.Item, error)

	// Update はアイテムを部分更新し、更新後のアイテムを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error)

	// Delete は指定IDのアイテムを削除する。見つからない場合はfalseを返す。
	Delete(ctx context.Context, id int64) (bool, error)

	// Count はアイテム総数を返す。activeOnlyがtrueの場合はis_active=trueのみ数える。
	Count(ctx context.Context, activeOnly bool) (int, error)
}
