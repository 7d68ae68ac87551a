package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/ryohei/inkwell/internal/model"
)

// ItemServiceInterface はアイテムハンドラーが必要とするサービスインターフェース。
type ItemServiceInterface interface {
	// Create はアイテムを作成する。
	Create(ctx context.Context, title, description string, isActive bool) (*model.Item, error)
	// Get は指定IDのアイテムを取得する。
	Get(ctx context.Context, itemID int64) (*model.Item, error)
	// List はアイテム一覧をページネーション付きで取得する。
	List(ctx context.Context, offset, limit int, activeOnly bool) ([]*model.Item, error)
	// Update はアイテムを部分更新する。
	Update(ctx context.Context, itemID int64, patch model.ItemPatch) (*model.Item, error)
	// Delete はアイテムを削除する。
	Delete(ctx context.Context, itemID int64) error
	// Count はアイテム総数を返す。
	Count(ctx context.Context, activeOnly bool) (int, error)
}

// ItemHandler はアイテム管理のHTTPハンドラー。
type ItemHandler struct {
	service ItemServiceInterface
}

// NewItemHandler はItemHandlerを生成する。
func NewItemHandler(service ItemServiceInterface) *ItemHandler {
	return &ItemHandler{service: service}
}

// createItemRequest はアイテム作成リクエストのボディ。
// is_active未指定の場合はtrueになる。
type createItemRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	IsActive    *bool  `json:"is_active"`
}

// updateItemRequest はアイテム部分更新リクエストのボディ。
type updateItemRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	IsActive    *bool   `json:"is_active"`
}

// itemResponse はアイテムのAPIレスポンス。
type itemResponse struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// itemCountResponse はアイテム総数のAPIレスポンス。
type itemCountResponse struct {
	Count int `json:"count"`
}

// CreateItem はアイテム作成を処理する。
// POST /api/items
func (h *ItemHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if apiErr := validateItemTitle(req.Title); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	created, err := h.service.Create(r.Context(), req.Title, req.Description, isActive)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toItemResponse(created))
}

// GetItem はアイテム詳細を取得する。
// GET /api/items/:id
func (h *ItemHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, apiErr := parseItemID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	item, err := h.service.Get(r.Context(), itemID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(item))
}

// ListItems はアイテム一覧を取得する。
// GET /api/items
func (h *ItemHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset, limit, apiErr := parsePagination(q.Get("skip"), q.Get("limit"), 100, 1000)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	activeOnly := q.Get("active_only") == "true"

	items, err := h.service.List(r.Context(), offset, limit, activeOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]itemResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, toItemResponse(item))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// CountItems はアイテム総数を取得する。
// GET /api/items/count
func (h *ItemHandler) CountItems(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active_only") == "true"

	count, err := h.service.Count(r.Context(), activeOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(itemCountResponse{Count: count})
}

// UpdateItem はアイテムの部分更新を処理する。
// PUT /api/items/:id
func (h *ItemHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, apiErr := parseItemID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Title != nil {
		if apiErr := validateItemTitle(*req.Title); apiErr != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
	}

	patch := model.ItemPatch{
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
	}

	updated, err := h.service.Update(r.Context(), itemID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toItemResponse(updated))
}

// DeleteItem はアイテム削除を処理する。
// DELETE /api/items/:id
func (h *ItemHandler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, apiErr := parseItemID(r)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	if err := h.service.Delete(r.Context(), itemID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toItemResponse はmodel.ItemからAPIレスポンスに変換する。
func toItemResponse(item *model.Item) itemResponse {
	return itemResponse{
		ID:          item.ID,
		Title:       item.Title,
		Description: item.Description,
		IsActive:    item.IsActive,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

// parseItemID はURLパラメータからアイテムIDを取得する。
func parseItemID(r *http.Request) (int64, *model.APIError) {
	idStr := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewValidationError("アイテムIDは正の整数で指定してください")
	}
	return id, nil
}

// validateItemTitle はアイテムタイトルの長さを検証する。
func validateItemTitle(title string) *model.APIError {
	n := utf8.RuneCountInString(title)
	if n < 1 || n > 255 {
		return model.NewValidationError("タイトルは1文字以上255文字以下で指定してください")
	}
	return nil
}
