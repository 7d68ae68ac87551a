package user

import (
	"context"
	"errors"
	"testing"

	"github.com/ryohei/inkwell/internal/model"
)

// --- モック定義 ---

// mockUserRepo はrepository.UserRepositoryのモック実装。
type mockUserRepo struct {
	findByIDFn      func(ctx context.Context, id int64) (*model.User, error)
	updateProfileFn func(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error)
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) UpdateProfile(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, id, patch)
	}
	return nil, nil
}
// markerSanitizer はSanitizeTextの適用を検知できるテスト用実装。
type markerSanitizer struct{}

func (markerSanitizer) Sanitize(rawHTML string) string { return rawHTML }
func (markerSanitizer) SanitizeText(s string) string   { return "clean:" + s }

// --- テスト ---

// TestService_GetProfile_Success はプロフィール取得を検証する。
func TestService_GetProfile_Success(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return &model.User{ID: id, Email: "alice@example.com", DisplayName: "アリス"}, nil
		},
	}
	svc := NewService(repo, markerSanitizer{})

	user, err := svc.GetProfile(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	if user.ID != 7 || user.DisplayName != "アリス" {
		t.Errorf("user = %+v, unexpected fields", user)
	}
}

// TestService_GetProfile_NotFound は存在しないユーザーのプロフィール取得が
// USER_NOT_FOUNDになることを検証する。
func TestService_GetProfile_NotFound(t *testing.T) {
	repo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id int64) (*model.User, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, markerSanitizer{})

	_, err := svc.GetProfile(context.Background(), 99)

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("GetProfile() error = %v, want USER_NOT_FOUND", err)
	}
}

// TestService_UpdateProfile_SanitizesTextFields は表示名と自己紹介に
// タグ除去サニタイズが適用されることを検証する。
func TestService_UpdateProfile_SanitizesTextFields(t *testing.T) {
	var gotPatch model.UserProfilePatch
	repo := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error) {
			gotPatch = patch
			return &model.User{ID: id}, nil
		},
	}
	svc := NewService(repo, markerSanitizer{})

	displayName := "新しい名前"
	bio := "<b>自己紹介</b>"
	_, err := svc.UpdateProfile(context.Background(), 7, model.UserProfilePatch{
		DisplayName: &displayName,
		Bio:         &bio,
	})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	if gotPatch.DisplayName == nil || *gotPatch.DisplayName != "clean:新しい名前" {
		t.Errorf("patch.DisplayName = %v, want sanitized", gotPatch.DisplayName)
	}
	if gotPatch.Bio == nil || *gotPatch.Bio != "clean:<b>自己紹介</b>" {
		t.Errorf("patch.Bio = %v, want sanitized", gotPatch.Bio)
	}
}

// TestService_UpdateProfile_PartialPatch はパッチに含まれないフィールドが
// そのままnilで渡されることを検証する。
func TestService_UpdateProfile_PartialPatch(t *testing.T) {
	var gotPatch model.UserProfilePatch
	repo := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error) {
			gotPatch = patch
			return &model.User{ID: id}, nil
		},
	}
	svc := NewService(repo, markerSanitizer{})

	bio := "bioのみ更新"
	_, err := svc.UpdateProfile(context.Background(), 7, model.UserProfilePatch{Bio: &bio})
	if err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	if gotPatch.DisplayName != nil {
		t.Errorf("patch.DisplayName = %v, want nil", gotPatch.DisplayName)
	}
	if gotPatch.AvatarURL != nil {
		t.Errorf("patch.AvatarURL = %v, want nil", gotPatch.AvatarURL)
	}
}

// TestService_UpdateProfile_NotFound はユーザー不在時にUSER_NOT_FOUNDになることを検証する。
func TestService_UpdateProfile_NotFound(t *testing.T) {
	repo := &mockUserRepo{
		updateProfileFn: func(ctx context.Context, id int64, patch model.UserProfilePatch) (*model.User, error) {
			return nil, nil
		},
	}
	svc := NewService(repo, markerSanitizer{})

	bio := "x"
	_, err := svc.UpdateProfile(context.Background(), 99, model.UserProfilePatch{Bio: &bio})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("UpdateProfile() error = %v, want USER_NOT_FOUND", err)
	}
}
