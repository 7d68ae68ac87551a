package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/ryohei/inkwell/internal/model"
)

// PostgresPostRepo はPostgreSQLを使用した投稿リポジトリ。
type PostgresPostRepo struct {
	db *sql.DB
}

// NewPostgresPostRepo はPostgresPostRepoを生成する。
func NewPostgresPostRepo(db *sql.DB) *PostgresPostRepo {
	return &PostgresPostRepo{db: db}
}

// joinTags はタグスライスをストレージのカンマ結合表現に変換する。
// 入力はサービス層で正規化済みであることを前提とする。
func joinTags(tags []string) string {
	return strings.Join(tags, ",")
}

// splitTags はストレージのカンマ結合表現をタグスライスに変換する。
// 空のエントリは除外する。
func splitTags(s string) []string {
	if s == "" {
		return []string{}
	}
	tags := make([]string, 0)
	for _, tag := range strings.Split(s, ",") {
		if tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// postSelect は投稿と著者をJOINした共通SELECT句。
const postSelect = `
	SELECT p.id, p.title, p.content, p.summary, p.tags, p.category, p.status,
	       p.view_count, p.like_count, p.author_id,
	       p.created_at, p.updated_at, p.published_at,
	       u.id, u.display_name, u.avatar_url
	FROM posts p
	JOIN users u ON u.id = p.author_id`

// scanPostRow は投稿と著者のJOIN結果1行をスキャンする。
func scanPostRow(scan func(dest ...interface{}) error) (*model.PostWithAuthor, error) {
	p := &model.PostWithAuthor{}
	var tags string
	var status string
	var publishedAt sql.NullTime

	err := scan(
		&p.ID, &p.Title, &p.Content, &p.Summary, &tags, &p.Category, &status,
		&p.ViewCount, &p.LikeCount, &p.AuthorID,
		&p.CreatedAt, &p.UpdatedAt, &publishedAt,
		&p.Author.ID, &p.Author.DisplayName, &p.Author.AvatarURL,
	)
	if err != nil {
		return nil, err
	}

	p.Tags = splitTags(tags)
	p.Status = model.PostStatus(status)
	if publishedAt.Valid {
		p.PublishedAt = &publishedAt.Time
	}

	return p, nil
}

// Create は投稿を作成し、著者情報付きで返す。
func (r *PostgresPostRepo) Create(ctx context.Context, post *model.Post) (*model.PostWithAuthor, error) {
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO posts (title, content, summary, tags, category, status, author_id, published_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		post.Title, post.Content, post.Summary, joinTags(post.Tags),
		post.Category, string(post.Status), post.AuthorID, post.PublishedAt,
	).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("failed to insert post: %w", err)
	}

	created, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, fmt.Errorf("post disappeared after insert: %d", id)
	}
	return created, nil
}

// FindByID は指定IDの投稿を著者情報付きで取得する。見つからない場合はnilを返す。
func (r *PostgresPostRepo) FindByID(ctx context.Context, id int64) (*model.PostWithAuthor, error) {
	row := r.db.QueryRowContext(ctx, postSelect+` WHERE p.id = $1`, id)

	post, err := scanPostRow(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find post by ID: %w", err)
	}

	return post, nil
}

// List は検索条件に一致する投稿一覧を著者情報付きで返す。
// created_at降順で、オフセット/リミットによるページネーションを行う。
func (r *PostgresPostRepo) List(ctx context.Context, filter model.PostFilter) ([]*model.PostWithAuthor, error) {
	query := postSelect
	conditions := []string{}
	args := []interface{}{}
	argIndex := 1

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", argIndex))
		args = append(args, string(*filter.Status))
		argIndex++
	}

	// title/content/summaryに対する大文字小文字を区別しない部分一致（OR結合）
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		conditions = append(conditions, fmt.Sprintf(
			"(p.title ILIKE $%d OR p.content ILIKE $%d OR p.summary ILIKE $%d)",
			argIndex, argIndex, argIndex,
		))
		args = append(args, pattern)
		argIndex++
	}

	// 正規化済みタグ文字列に対する部分一致
	if filter.Tag != "" {
		conditions = append(conditions, fmt.Sprintf("p.tags ILIKE $%d", argIndex))
		args = append(args, "%"+filter.Tag+"%")
		argIndex++
	}

	if filter.AuthorID != nil {
		conditions = append(conditions, fmt.Sprintf("p.author_id = $%d", argIndex))
		args = append(args, *filter.AuthorID)
		argIndex++
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += fmt.Sprintf(" ORDER BY p.created_at DESC OFFSET $%d LIMIT $%d", argIndex, argIndex+1)
	args = append(args, filter.Offset, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	posts := []*model.PostWithAuthor{}
	for rows.Next() {
		post, err := scanPostRow(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, post)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate post rows: %w", err)
	}

	return posts, nil
}

// Update は投稿を部分更新し、更新後の投稿を著者情報付きで返す。
// published_atはサービス層が初回公開を判定した場合にのみ渡される。
func (r *PostgresPostRepo) Update(ctx context.Context, id int64, patch model.PostPatch, publishedAt *time.Time) (*model.PostWithAuthor, error) {
	setClauses := []string{}
	args := []interface{}{}
	argIndex := 1

	appendSet := func(column string, value interface{}) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIndex))
		args = append(args, value)
		argIndex++
	}

	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Content != nil {
		appendSet("content", *patch.Content)
	}
	if patch.Summary != nil {
		appendSet("summary", *patch.Summary)
	}
	if patch.Tags != nil {
		appendSet("tags", joinTags(patch.Tags))
	}
	if patch.Category != nil {
		appendSet("category", *patch.Category)
	}
	if patch.Status != nil {
		appendSet("status", string(*patch.Status))
	}
	if publishedAt != nil {
		appendSet("published_at", *publishedAt)
	}
	setClauses = append(setClauses, "updated_at = now()")

	query := fmt.Sprintf(
		`UPDATE posts SET %s WHERE id = $%d`,
		strings.Join(setClauses, ", "), argIndex,
	)
	args = append(args, id)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, nil
	}

	return r.FindByID(ctx, id)
}

// Delete は指定IDの投稿を削除する。見つからない場合はfalseを返す。
func (r *PostgresPostRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM posts WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete post: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// IncrementViewCount は閲覧数をストレージレベルの単一UPDATEで1増やす。
// 読み取り→加算→書き込みを分けないため、並行読者の下でも更新が失われない。
func (r *PostgresPostRepo) IncrementViewCount(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE posts SET view_count = view_count + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to increment view count: %w", err)
	}
	return nil
}

// compile-time interface check
var _ PostRepository = (*PostgresPostRepo)(nil)
