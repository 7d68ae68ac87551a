// Package post は投稿の可視性・所有権ルールに関するビジネスロジックを提供する。
//
// 中核となる不変条件: 投稿のstatusとリクエスト者の身元の組が、
// その投稿を誰が閲覧・変更できるかを決定する。
//   - published: 誰でも閲覧可能
//   - draft / private: 著者のみ閲覧可能。著者以外にはForbiddenではなく
//     NotFoundを返し、非公開コンテンツの存在自体を秘匿する。
package post

import (
	"context"
	"fmt"
	"time"

	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/repository"
	"github.com/ryohei/inkwell/internal/security"
)

// MetricsRecorder は投稿イベントのメトリクス記録に必要なインターフェース。
// metrics.Collectorの部分集合として定義する。
type MetricsRecorder interface {
	RecordPostCreated()
	RecordPostView()
}

// CreateInput は投稿作成の入力を表す。
type CreateInput struct {
	Title    string
	Content  string
	Summary  string
	Tags     []string
	Category string
	Status   model.PostStatus // 空の場合はdraft
}

// ListOptions は投稿一覧取得の条件を表す。
type ListOptions struct {
	Status      *model.PostStatus
	Search      string
	Tag         string
	Mine        bool   // trueの場合はリクエスト者自身の投稿のみを対象とする
	RequesterID *int64 // 未認証の場合はnil
	Offset      int
	Limit       int
}

// Service は投稿に関するビジネスロジックを提供する。
type Service struct {
	repo      repository.PostRepository
	sanitizer security.ContentSanitizerService
	metrics   MetricsRecorder  // nilの場合は記録しない
	now       func() time.Time // テストで差し替え可能な時刻源
}

// NewService はServiceを生成する。
func NewService(
	repo repository.PostRepository,
	sanitizer security.ContentSanitizerService,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		repo:      repo,
		sanitizer: sanitizer,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Create は投稿を作成する。
// statusが未指定の場合はdraftになる。初期statusがpublishedの場合は
// published_atに作成時刻を設定する。タグは正規化（前後空白除去、空要素削除）
// してから保存する。
func (s *Service) Create(ctx context.Context, input CreateInput, authorID int64) (*model.PostWithAuthor, error) {
	status := input.Status
	if status == "" {
		status = model.PostStatusDraft
	}

	post := &model.Post{
		Title:    input.Title,
		Content:  s.sanitizer.Sanitize(input.Content),
		Summary:  s.sanitizer.SanitizeText(input.Summary),
		Tags:     model.NormalizeTags(input.Tags),
		Category: s.sanitizer.SanitizeText(input.Category),
		Status:   status,
		AuthorID: authorID,
	}

	if status == model.PostStatusPublished {
		now := s.now().UTC()
		post.PublishedAt = &now
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPostCreated()
	}

	return created, nil
}

// Get は投稿を1件取得する。
// 存在しない場合、またはdraft/privateの投稿をリクエスト者が著者以外
// （未認証を含む）として参照した場合はNOT_FOUNDを返す。
// 取得成功時の副作用として閲覧数をストレージレベルで1増やし、
// 増加後のレコードを返す。著者自身の閲覧でも増加する。
func (s *Service) Get(ctx context.Context, postID int64, requesterID *int64) (*model.PostWithAuthor, error) {
	found, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if found == nil {
		return nil, model.NewPostNotFoundError(postID)
	}

	if !s.visibleTo(&found.Post, requesterID) {
		// 非公開投稿の存在をForbiddenで確認させないため、NotFoundを返す
		return nil, model.NewPostNotFoundError(postID)
	}

	if err := s.repo.IncrementViewCount(ctx, postID); err != nil {
		return nil, fmt.Errorf("failed to increment view count: %w", err)
	}

	refreshed, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload post: %w", err)
	}
	if refreshed == nil {
		// 並行削除された場合
		return nil, model.NewPostNotFoundError(postID)
	}

	if s.metrics != nil {
		s.metrics.RecordPostView()
	}

	return refreshed, nil
}

// List は投稿一覧を取得する。
// Mineがfalse（公開一覧）の場合は、呼び出し側がstatusフィルタを指定していても
// 常にpublishedのみに制限する。Mineがtrueの場合はリクエスト者自身の全statusが
// 対象となり、statusフィルタが指定されていればさらに絞り込む。
// リクエスト者自身のIDに明示的にスコープされない一覧は全て公開扱いとする。
func (s *Service) List(ctx context.Context, opts ListOptions) ([]*model.PostWithAuthor, error) {
	filter := model.PostFilter{
		Search: opts.Search,
		Tag:    opts.Tag,
		Offset: opts.Offset,
		Limit:  opts.Limit,
	}

	if opts.Mine {
		if opts.RequesterID == nil {
			return nil, model.NewUnauthorizedError()
		}
		filter.AuthorID = opts.RequesterID
		filter.Status = opts.Status
	} else {
		published := model.PostStatusPublished
		filter.Status = &published
	}

	posts, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}

	return posts, nil
}

// Update は投稿を部分更新する。著者のみが実行できる。
// 存在しない場合はNOT_FOUND、著者以外の場合はFORBIDDENを返す。
// パッチでstatusがpublishedに遷移し、かつpublished_atが未設定の場合のみ
// published_atを現在時刻に設定する。一度公開された投稿を再公開しても
// 元の公開時刻は変わらない。
func (s *Service) Update(ctx context.Context, postID int64, patch model.PostPatch, requesterID int64) (*model.PostWithAuthor, error) {
	existing, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to find post: %w", err)
	}
	if existing == nil {
		return nil, model.NewPostNotFoundError(postID)
	}
	if existing.AuthorID != requesterID {
		return nil, model.NewForbiddenError()
	}

	if patch.Content != nil {
		sanitized := s.sanitizer.Sanitize(*patch.Content)
		patch.Content = &sanitized
	}
	if patch.Summary != nil {
		sanitized := s.sanitizer.SanitizeText(*patch.Summary)
		patch.Summary = &sanitized
	}
	if patch.Category != nil {
		sanitized := s.sanitizer.SanitizeText(*patch.Category)
		patch.Category = &sanitized
	}
	if patch.Tags != nil {
		patch.Tags = model.NormalizeTags(patch.Tags)
	}

	var publishedAt *time.Time
	if patch.Status != nil && *patch.Status == model.PostStatusPublished && existing.PublishedAt == nil {
		now := s.now().UTC()
		publishedAt = &now
	}

	updated, err := s.repo.Update(ctx, postID, patch, publishedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to update post: %w", err)
	}
	if updated == nil {
		// 所有権チェック後に並行削除された場合
		return nil, model.NewPostNotFoundError(postID)
	}

	return updated, nil
}

// Delete は投稿を削除する。著者のみが実行できる。
// 存在しない場合はNOT_FOUND、著者以外の場合はFORBIDDENを返す。
func (s *Service) Delete(ctx context.Context, postID int64, requesterID int64) error {
	existing, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to find post: %w", err)
	}
	if existing == nil {
		return model.NewPostNotFoundError(postID)
	}
	if existing.AuthorID != requesterID {
		return model.NewForbiddenError()
	}

	deleted, err := s.repo.Delete(ctx, postID)
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if !deleted {
		return model.NewPostNotFoundError(postID)
	}

	return nil
}

// visibleTo は投稿がリクエスト者に閲覧可能かを判定する。
// publishedは誰でも、draft/privateは著者のみ閲覧可能。
func (s *Service) visibleTo(p *model.Post, requesterID *int64) bool {
	if p.Status == model.PostStatusPublished {
		return true
	}
	return requesterID != nil && *requesterID == p.AuthorID
}
