// Package handler はHTTP APIのハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"time"
	"unicode/utf8"

	"github.com/ryohei/inkwell/internal/auth"
	"github.com/ryohei/inkwell/internal/middleware"
	"github.com/ryohei/inkwell/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Register は新規ユーザーを登録し、トークンとユーザーを返す。
	Register(ctx context.Context, email, password, displayName string) (*auth.Result, error)
	// Login はメールアドレスとパスワードで認証し、トークンとユーザーを返す。
	Login(ctx context.Context, email, password string) (*auth.Result, error)
}

// AuthHandler は登録・ログイン・セッション確認のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface) *AuthHandler {
	return &AuthHandler{service: service}
}

// registerRequest はユーザー登録リクエストのボディ。
type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
// パスワードハッシュは決して含めない。
type userResponse struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Bio         string    `json:"bio"`
	AvatarURL   string    `json:"avatar_url"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// authResponse は登録・ログイン成功時のレスポンス。
type authResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        userResponse `json:"user"`
}

// Register は新規ユーザー登録を処理する。
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if apiErr := validateEmail(req.Email); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}
	if utf8.RuneCountInString(req.Password) < 8 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewValidationError("パスワードは8文字以上で指定してください"))
		return
	}
	if apiErr := validateDisplayName(req.DisplayName); apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	result, err := h.service.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toAuthResponse(result))
}

// Login はログインを処理する。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeInvalidRequestBody(w)
		return
	}

	if req.Email == "" || req.Password == "" {
		// 入力欠落も認証失敗と同じ応答にし、どちらが誤りかを漏らさない
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toAuthResponse(result))
}

// Me は現在のセッションのユーザー情報を返す。
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toUserResponse(user))
}

// --- ヘルパー関数 ---

// toAuthResponse はauth.ResultからAPIレスポンスに変換する。
func toAuthResponse(result *auth.Result) authResponse {
	return authResponse{
		AccessToken: result.Token,
		TokenType:   "bearer",
		User:        toUserResponse(result.User),
	}
}

// toUserResponse はmodel.UserからAPIレスポンスに変換する。
func toUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Bio:         user.Bio,
		AvatarURL:   user.AvatarURL,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// validateEmail はメールアドレスの形式を検証する。
func validateEmail(email string) *model.APIError {
	if email == "" {
		return model.NewValidationError("メールアドレスが空です")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return model.NewValidationError("メールアドレスの形式が不正です")
	}
	return nil
}

// validateDisplayName は表示名の長さを検証する。
func validateDisplayName(displayName string) *model.APIError {
	n := utf8.RuneCountInString(displayName)
	if n < 1 || n > 100 {
		return model.NewValidationError("表示名は1文字以上100文字以下で指定してください")
	}
	return nil
}
