package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/ryohei/inkwell/internal/middleware"
	"github.com/ryohei/inkwell/internal/model"
	"github.com/ryohei/inkwell/internal/post"
)

// PostServiceInterface は投稿ハンドラーが必要とするサービスインターフェース。
type PostServiceInterface interface {
	// Create は投稿を作成する。
	Create(ctx context.Context, input post.CreateInput, authorID int64) (*model.PostWithAuthor, error)
	// Get は投稿を1件取得し、閲覧数を増加させる。
	Get(ctx context.Context, postID int64, requesterID *int64) (*model.PostWithAuthor, error)
	// List は投稿一覧を取得する。
	List(ctx context.Context, opts post.ListOptions) ([]*model.PostWithAuthor, error)
	// Update は投稿を部分更新する。
	Update(ctx context.Context, postID int64, patch model.PostPatch, requesterID int64) (*model.PostWithAuthor, error)
	// Delete は投稿を削除する。
	Delete(ctx context.Context, postID int64, requesterID int64) error
}

// PostHandler は投稿管理のHTTPハンドラー。
type PostHandler struct {
	service PostServiceInterface
}

// NewPostHandler はPostHandlerを生成する。
func NewPostHandler(service PostServiceInterface) *PostHandler {
	return &PostHandler{service: service}
}

// createPostRequest は投稿作成リクエストのボディ。
type createPostRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
	Status   string   `json:"status"`
}

// updatePostRequest は投稿部分更新リクエストのボディ。
// nilのフィールドは変更しない。Tagsはnilの場合のみ変更なし。
type updatePostRequest struct {
	Title    *string  `json:"title"`
	Content  *string  `json:"content"`
	Summary  *string  `json:"summary"`
	Tags     []string `json:"tags"`
	Category *string  `json:"category"`
	Status   *string  `json:"status"`
}

// postAuthorResponse は投稿レスポンスに含める著者の公開情報。
type postAuthorResponse struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

// postResponse は投稿のAPIレスポンス。
type postResponse struct {
	ID          int64              `json:"id"`
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	Summary     string             `json:"summary"`
	Tags        []string           `json:"tags"`
	Category    string             `json:"category"`
	Status      string             `json:"status"`
	ViewCount   int                `json:"view_count"`
	LikeCount   int                `json:"like_count"`
	AuthorID    int64              `json:"author_id"`
	Author      postAuthorResponse `json:"author"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	PublishedAt *time.Time         `json:"published_at"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// CreatePost は投稿作成を処理する。
// POST /api/posts
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if apiErr := validatePostFields(req.Title, true, req.Content, true, req.Summary, req.Category); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	input := post.CreateInput{
		Title:    req.Title,
		Content:  req.Content,
		Summary:  req.Summary,
		Tags:     req.Tags,
		Category: req.Category,
	}

	if req.Status != "" {
		status, err := model.ParsePostStatus(req.Status)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("statusはpublished/draft/privateのいずれかを指定してください"))
			return
		}
		input.Status = status
	}

	created, err := h.service.Create(r.Context(), input, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toPostResponse(created))
}

// GetPost は投稿詳細を取得する。匿名アクセス可。
// GET /api/posts/:id
func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	postID, apiErr := parsePostID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	found, err := h.service.Get(r.Context(), postID, optionalRequesterID(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(found))
}

// ListPosts は投稿一覧を取得する。匿名アクセス可。
// mine=trueの場合は認証必須で、自分の投稿のみが対象となる。
// GET /api/posts
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	opts := post.ListOptions{
		Search:      q.Get("search"),
		Tag:         q.Get("tag"),
		Mine:        q.Get("mine") == "true",
		RequesterID: optionalRequesterID(r),
	}

	var apiErr *model.APIError
	opts.Offset, opts.Limit, apiErr = parsePagination(q.Get("skip"), q.Get("limit"), 20, 100)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if statusStr := q.Get("status"); statusStr != "" {
		status, err := model.ParsePostStatus(statusStr)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("statusはpublished/draft/privateのいずれかを指定してください"))
			return
		}
		opts.Status = &status
	}

	posts, err := h.service.List(r.Context(), opts)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]postResponse, 0, len(posts))
	for _, p := range posts {
		responses = append(responses, toPostResponse(p))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// UpdatePost は投稿の部分更新を処理する。著者のみ実行可。
// PUT /api/posts/:id
func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	postID, apiErr := parsePostID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	patch := model.PostPatch{
		Title:    req.Title,
		Content:  req.Content,
		Summary:  req.Summary,
		Tags:     req.Tags,
		Category: req.Category,
	}

	title, content, summary, category := "", "", "", ""
	if req.Title != nil {
		title = *req.Title
	}
	if req.Content != nil {
		content = *req.Content
	}
	if req.Summary != nil {
		summary = *req.Summary
	}
	if req.Category != nil {
		category = *req.Category
	}
	if apiErr := validatePostFields(title, req.Title != nil, content, req.Content != nil, summary, category); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if req.Status != nil {
		status, err := model.ParsePostStatus(*req.Status)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("statusはpublished/draft/privateのいずれかを指定してください"))
			return
		}
		patch.Status = &status
	}

	updated, err := h.service.Update(r.Context(), postID, patch, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toPostResponse(updated))
}

// DeletePost は投稿削除を処理する。著者のみ実行可。
// DELETE /api/posts/:id
func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	postID, apiErr := parsePostID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), postID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toPostResponse はmodel.PostWithAuthorからAPIレスポンスに変換する。
func toPostResponse(p *model.PostWithAuthor) postResponse {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return postResponse{
		ID:          p.ID,
		Title:       p.Title,
		Content:     p.Content,
		Summary:     p.Summary,
		Tags:        tags,
		Category:    p.Category,
		Status:      string(p.Status),
		ViewCount:   p.ViewCount,
		LikeCount:   p.LikeCount,
		AuthorID:    p.AuthorID,
		Author: postAuthorResponse{
			ID:          p.Author.ID,
			DisplayName: p.Author.DisplayName,
			AvatarURL:   p.Author.AvatarURL,
		},
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		PublishedAt: p.PublishedAt,
	}
}

// parsePostID はURLパラメータから投稿IDを取得する。
func parsePostID(r *http.Request) (int64, *model.APIError) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("投稿IDは正の整数で指定してください")
	}
	return id, nil
}

// optionalRequesterID はコンテキストに認証済みユーザーがいればそのIDを返す。
// 匿名リクエストの場合はnilを返す。
func optionalRequesterID(r *http.Request) *int64 {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil
	}
	return &userID
}

// parsePagination はskip/limitクエリパラメータを解析する。
// limitが未指定の場合はdefaultLimit、maxLimitを超える値はエラーとする。
func parsePagination(skipStr, limitStr string, defaultLimit, maxLimit int) (int, int, *model.APIError) {
	skip := 0
	if skipStr != "" {
		parsed, err := strconv.Atoi(skipStr)
		if err != nil || parsed < 0 {
			return 0, 0, model.NewValidationError("skipは0以上の整数で指定してください")
		}
		skip = parsed
	}

	limit := defaultLimit
	if limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 || parsed > maxLimit {
			return 0, 0, model.NewValidationError(fmt.Sprintf("limitは1以上%d以下の整数で指定してください", maxLimit))
		}
		limit = parsed
	}

	return skip, limit, nil
}

// validatePostFields は投稿フィールドの長さ制約を検証する。
// hasTitle/hasContentがfalseのフィールドは検証をスキップする（部分更新用）。
func validatePostFields(title string, hasTitle bool, content string, hasContent bool, summary, category string) *model.APIError {
	if hasTitle {
		n := utf8.RuneCountInString(title)
		if n < 1 || n > 255 {
			return model.NewValidationError("タイトルは1文字以上255文字以下で指定してください")
		}
	}
	if hasContent && content == "" {
		return model.NewValidationError("本文が空です")
	}
	if utf8.RuneCountInString(summary) > 500 {
		return model.NewValidationError("概要は500文字以下で指定してください")
	}
	if utf8.RuneCountInString(category) > 100 {
		return model.NewValidationError("カテゴリは100文字以下で指定してください")
	}
	return nil
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// writeInvalidRequestBody はJSONボディの解析失敗レスポンスを書き込む。
func writeInvalidRequestBody(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		statusCode := mapAPIErrorToHTTPStatus(apiErr)
		writeAPIErrorResponse(w, statusCode, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeEmailTaken:
		return http.StatusConflict
	case model.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case model.ErrCodeForbidden:
		return http.StatusForbidden
	case model.ErrCodePostNotFound, model.ErrCodeUserNotFound, model.ErrCodeItemNotFound:
		return http.StatusNotFound
	case model.ErrCodeValidationError, model.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
