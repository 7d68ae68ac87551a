// Package user はユーザープロフィール管理のビジネスロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/repository"
	"github.com/ryohei/inkwell/internal/security"
)

// Service はプロフィール管理に関するビジネスロジックを提供する。
type Service struct {
	userRepo  repository.UserRepository
	sanitizer security.ContentSanitizerService
}

// NewService はServiceを生成する。
func NewService(userRepo repository.UserRepository, sanitizer security.ContentSanitizerService) *Service {
	return &Service{
		userRepo:  userRepo,
		sanitizer: sanitizer,
	}
}

// GetProfile は指定ユーザーのプロフィールを取得する。
// 見つからない場合はUSER_NOT_FOUNDエラーを返す。
func (s *Service) GetProfile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// UpdateProfile はプロフィールを部分更新する。
// パッチに含まれるフィールドのみを変更し、bioはタグ除去サニタイズを適用する。
func (s *Service) UpdateProfile(ctx context.Context, userID int64, patch model.UserProfilePatch) (*model.User, error) {
	if patch.Bio != nil {
		sanitized := s.sanitizer.SanitizeText(*patch.Bio)
		patch.Bio = &sanitized
	}
	if patch.DisplayName != nil {
		sanitized := s.sanitizer.SanitizeText(*patch.DisplayName)
		patch.DisplayName = &sanitized
	}

	user, err := s.userRepo.UpdateProfile(ctx, userID, patch)
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user profile updated", slog.Int64("user_id", userID))
	return user, nil
}
