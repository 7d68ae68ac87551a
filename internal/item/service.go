// Package item は汎用アイテムCRUDのビジネスロジックを提供する。
package item

import (
	"context"
	"fmt"

	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/repository"
)

// Service はアイテムに関するビジネスロジックを提供する。
type Service struct {
	repo repository.ItemRepository
}

// NewService はServiceを生成する。
func NewService(repo repository.ItemRepository) *Service {
	return &Service{repo: repo}
}

// Create はアイテムを作成する。
func (s *Service) Create(ctx context.Context, title, description string, isActive bool) (*model.Item, error) {
	created, err := s.repo.Create(ctx, &model.Item{
		Title:       title,
		Description: description,
		IsActive:    isActive,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	return created, nil
}

// Get は指定IDのアイテムを取得する。見つからない場合はITEM_NOT_FOUNDエラーを返す。
func (s *Service) Get(ctx context.Context, itemID int64) (*model.Item, error) {
	item, err := s.repo.FindByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to find item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	return item, nil
}

// List はアイテム一覧をページネーション付きで取得する。
func (s *Service) List(ctx context.Context, offset, limit int, activeOnly bool) ([]*model.Item, error) {
	items, err := s.repo.List(ctx, offset, limit, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	return items, nil
}

// Update はアイテムを部分更新する。見つからない場合はITEM_NOT_FOUNDエラーを返す。
func (s *Service) Update(ctx context.Context, itemID int64, patch model.ItemPatch) (*model.Item, error) {
	item, err := s.repo.Update(ctx, itemID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	if item == nil {
		return nil, model.NewItemNotFoundError(itemID)
	}
	return item, nil
}

// Delete はアイテムを削除する。見つからない場合はITEM_NOT_FOUNDエラーを返す。
func (s *Service) Delete(ctx context.Context, itemID int64) error {
	deleted, err := s.repo.Delete(ctx, itemID)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	if !deleted {
		return model.NewItemNotFoundError(itemID)
	}
	return nil
}

// Count はアイテム総数を返す。
func (s *Service) Count(ctx context.Context, activeOnly bool) (int, error) {
	count, err := s.repo.Count(ctx, activeOnly)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}
