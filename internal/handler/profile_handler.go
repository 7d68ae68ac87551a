package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"unicode/utf8"

	"github.com/ryohei/inkwell/internal/middleware"
	"github.com/ryohei/inkwell/internal/model"
)

// ProfileServiceInterface はプロフィールハンドラーが必要とするサービスインターフェース。
type ProfileServiceInterface interface {
	// GetProfile はユーザーのプロフィールを取得する。
	GetProfile(ctx context.Context, userID int64) (*model.User, error)
	// UpdateProfile はプロフィールを部分更新する。
	UpdateProfile(ctx context.Context, userID int64, patch model.UserProfilePatch) (*model.User, error)
}

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	service ProfileServiceInterface
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service ProfileServiceInterface) *ProfileHandler {
	return &ProfileHandler{service: service}
}

// updateProfileRequest はプロフィール部分更新リクエストのボディ。
// nilのフィールドは変更しない。
type updateProfileRequest struct {
	DisplayName *string `json:"display_name"`
	Bio         *string `json:"bio"`
	AvatarURL   *string `json:"avatar_url"`
}

// GetProfile は自分のプロフィールを取得する。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	user, err := h.service.GetProfile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// UpdateProfile は自分のプロフィールを部分更新する。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.DisplayName != nil {
		if apiErr := validateDisplayName(*req.DisplayName); apiErr != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
			return
		}
	}
	if req.Bio != nil && utf8.RuneCountInString(*req.Bio) > 500 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("自己紹介は500文字以下で指定してください"))
		return
	}
	if req.AvatarURL != nil && *req.AvatarURL != "" {
		// カラム幅を超えるURLはストレージエラーではなく検証エラーとして返す
		if utf8.RuneCountInString(*req.AvatarURL) > 500 {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("アバターURLは500文字以下で指定してください"))
			return
		}
		if parsed, err := url.Parse(*req.AvatarURL); err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("アバターURLはhttp/httpsのURLで指定してください"))
			return
		}
	}

	patch := model.UserProfilePatch{
		DisplayName: req.DisplayName,
		Bio:         req.Bio,
		AvatarURL:   req.AvatarURL,
	}

	user, err := h.service.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}
