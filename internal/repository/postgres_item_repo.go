package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ryohei/inkwell/internal/model"
)

// PostgresItemRepo はPostgreSQLを使用したアイテムリポジトリ。
type PostgresItemRepo struct {
	db *sql.DB
}

// NewPostgresItemRepo はPostgresItemRepoを生成する。
func NewPostgresItemRepo(db *sql.DB) *PostgresItemRepo {
	return &PostgresItemRepo{db: db}
}

const itemColumns = `id, title, description, is_active, created_at, updated_at`

// scanItem は1行分のアイテムレコードをスキャンする。
func scanItem(row *sql.Row) (*model.Item, error) {
	item := &model.Item{}
	err := row.Scan(
		&item.ID, &item.Title, &item.Description, &item.IsActive,
		&item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return item, nil
}

// Create はアイテムを作成し、IDとタイムスタンプが設定された状態で返す。
func (r *PostgresItemRepo) Create(ctx context.Context, item *model.Item) (*model.Item, error) {
	created := *item
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO items (title, description, is_active)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		item.Title, item.Description, item.IsActive,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	return &created, nil
}

// FindByID は指定IDのアイテムを取得する。見つからない場合はnilを返す。
func (r *PostgresItemRepo) FindByID(ctx context.Context, id int64) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = $1`,
		id,
	))

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find item by ID: %w", err)
	}

	return item, nil
}

// List はアイテム一覧をcreated_at降順で返す。
func (r *PostgresItemRepo) List(ctx context.Context, offset, limit int, activeOnly bool) ([]*model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC OFFSET $1 LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*model.Item{}
	for rows.Next() {
		item := &model.Item{}
		if err := rows.Scan(
			&item.ID, &item.Title, &item.Description, &item.IsActive,
			&item.CreatedAt, &item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate item rows: %w", err)
	}

	return items, nil
}

// Update はアイテムを部分更新し、更新後のアイテムを返す。
// パッチが空の場合は現在のレコードをそのまま返す。
func (r *PostgresItemRepo) Update(ctx context.Context, id int64, patch model.ItemPatch) (*model.Item, error) {
	if patch.IsEmpty() {
		return r.FindByID(ctx, id)
	}

	setClauses := ""
	args := []interface{}{}
	argIndex := 1

	appendSet := func(column string, value interface{}) {
		if setClauses != "" {
			setClauses += ", "
		}
		setClauses += fmt.Sprintf("%s = $%d", column, argIndex)
		args = append(args, value)
		argIndex++
	}

	if patch.Title != nil {
		appendSet("title", *patch.Title)
	}
	if patch.Description != nil {
		appendSet("description", *patch.Description)
	}
	if patch.IsActive != nil {
		appendSet("is_active", *patch.IsActive)
	}
	setClauses += ", updated_at = now()"

	query := fmt.Sprintf(
		`UPDATE items SET %s WHERE id = $%d RETURNING `+itemColumns,
		setClauses, argIndex,
	)
	args = append(args, id)

	item, err := scanItem(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}

	return item, nil
}

// Delete は指定IDのアイテムを削除する。見つからない場合はfalseを返す。
func (r *PostgresItemRepo) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM items WHERE id = $1`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete item: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Count はアイテム総数を返す。
func (r *PostgresItemRepo) Count(ctx context.Context, activeOnly bool) (int, error) {
	query := `SELECT COUNT(*) FROM items`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}

	var count int
	if err := r.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

// compile-time interface check
var _ ItemRepository = (*PostgresItemRepo)(nil)
