package model

import (
	"fmt"
	"strings"
	"time"
)

// PostStatus は投稿の公開状態を表す。
type PostStatus string

const (
	// PostStatusPublished は一般公開された投稿を表す。
	PostStatusPublished PostStatus = "published"
	// PostStatusDraft は下書きの投稿を表す。著者のみ閲覧可能。
	PostStatusDraft PostStatus = "draft"
	// PostStatusPrivate は非公開の投稿を表す。著者のみ閲覧可能。
	PostStatusPrivate PostStatus = "private"
)

// ParsePostStatus は文字列をPostStatusに変換する。
// 未知の値の場合はエラーを返す。
func ParsePostStatus(s string) (PostStatus, error) {
	switch PostStatus(s) {
	case PostStatusPublished, PostStatusDraft, PostStatusPrivate:
		return PostStatus(s), nil
	}
	return "", fmt.Errorf("unknown post status: %q", s)
}

// Post はブログ投稿を表す。
// Tagsはドメイン層では文字列スライスとして扱い、
// ストレージのカンマ結合表現への変換はリポジトリ境界でのみ行う。
type Post struct {
	ID          int64
	Title       string
	Content     string
	Summary     string
	Tags        []string
	Category    string
	Status      PostStatus
	ViewCount   int
	LikeCount   int
	AuthorID    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
	PublishedAt *time.Time // 初回公開時に設定され、以後上書きされない
}

// PostAuthor はAPIレスポンスに含める著者の公開情報を表す。
type PostAuthor struct {
	ID          int64
	DisplayName string
	AvatarURL   string
}

// PostWithAuthor は投稿と著者情報を結合したモデル。
// usersテーブルとJOINして取得される。
type PostWithAuthor struct {
	Post
	Author PostAuthor
}

// PostPatch は投稿部分更新のパッチを表す。
// nilのフィールドは変更しない。Tagsはnilの場合のみ変更なしとみなす
// （空スライスは「全タグを削除」の指定）。
type PostPatch struct {
	Title    *string
	Content  *string
	Summary  *string
	Tags     []string
	Category *string
	Status   *PostStatus
}

// IsEmpty は全フィールドが未指定の場合にtrueを返す。
func (p PostPatch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Summary == nil &&
		p.Tags == nil && p.Category == nil && p.Status == nil
}

// PostFilter は投稿一覧の検索条件を表す。
type PostFilter struct {
	Status   *PostStatus // nilの場合はステータスで絞り込まない
	Search   string      // title/content/summaryに対する部分一致（大文字小文字を区別しない）
	Tag      string      // 正規化済みタグ文字列に対する部分一致
	AuthorID *int64      // nilの場合は著者で絞り込まない
	Offset   int
	Limit    int
}

// NormalizeTags はタグリストを正規化する。
// 各タグの前後空白を除去し、空のタグを取り除く。順序は保持する。
func NormalizeTags(tags []string) []string {
	normalized := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		normalized = append(normalized, tag)
	}
	return normalized
}
