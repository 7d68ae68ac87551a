package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/repository"
)

// MetricsRecorder は認証イベントのメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordAuthSuccess(kind string)
	RecordAuthFailure(kind string)
}

// Result は登録・ログイン成功時の結果を表す。
type Result struct {
	Token string
	User  *model.User
}

// Service は登録・ログインに関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	hasher   PasswordHasher
	tokens   *TokenService
	metrics  MetricsRecorder // nilの場合は記録しない
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	tokens *TokenService,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
		metrics:  metrics,
	}
}

// NormalizeEmail はメールアドレスを小文字に正規化する。
// 一意性チェックと保存の前に必ず適用する。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register は新規ユーザーを登録し、トークンとユーザーを返す。
// メールアドレスは小文字に正規化してから一意性チェックと保存を行う。
// 既に登録済み（大文字小文字を区別しない）の場合はEMAIL_TAKENエラーを返す。
func (s *Service) Register(ctx context.Context, email, password, displayName string) (*Result, error) {
	email = NormalizeEmail(email)

	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email uniqueness: %w", err)
	}
	if existing != nil {
		s.recordFailure("register")
		return nil, model.NewEmailTakenError()
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.userRepo.Create(ctx, &model.User{
		Email:        email,
		PasswordHash: passwordHash,
		DisplayName:  displayName,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.recordSuccess("register")
	slog.Info("new user registered",
		slog.Int64("user_id", user.ID),
		slog.String("email", user.Email),
	)

	return &Result{Token: token, User: user}, nil
}

// Login はメールアドレスとパスワードで認証し、トークンとユーザーを返す。
// ユーザー不在とパスワード不一致を区別せず、どちらも同じ
// UNAUTHORIZEDエラーを返す（どちらが誤りかを漏らさない）。
func (s *Service) Login(ctx context.Context, email, password string) (*Result, error) {
	email = NormalizeEmail(email)

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	if user == nil || !s.hasher.Verify(password, user.PasswordHash) {
		s.recordFailure("login")
		return nil, model.NewUnauthorizedError()
	}

	token, err := s.tokens.Issue(strconv.FormatInt(user.ID, 10))
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.recordSuccess("login")
	slog.Info("user logged in", slog.Int64("user_id", user.ID))

	return &Result{Token: token, User: user}, nil
}

func (s *Service) recordSuccess(kind string) {
	if s.metrics != nil {
		s.metrics.RecordAuthSuccess(kind)
	}
}

func (s *Service) recordFailure(kind string) {
	if s.metrics != nil {
		s.metrics.RecordAuthFailure(kind)
	}
}
