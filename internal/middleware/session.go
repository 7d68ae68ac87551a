// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/ryohei/inkwell/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("user")

// TokenVerifier はベアラートークンの検証に必要なインターフェース。
// auth.TokenServiceの部分集合として定義する。
type TokenVerifier interface {
	// Verify はトークンを検証し、subject（ユーザーID文字列）を返す。
	Verify(token string) (string, error)
}

// UserFinder は認証済みユーザーの解決に必要なインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのベアラートークンを検証し、
// 解決したユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// トークンが欠落・不正・期限切れの場合、またはsubjectに対応するユーザーが
// 存在しない場合（トークン発行後に削除された等）は401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(r, verifier, users)
			if user == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewOptionalAuthMiddleware はベアラートークンがあれば検証してユーザーを
// コンテキストに注入し、なければ匿名のままリクエストを通すミドルウェアを返す。
// トークンが不正な場合もエラーにせず「ユーザーなし」として扱う。
// 匿名と認証済みで挙動が分岐するエンドポイント（投稿一覧・閲覧）で使用する。
func NewOptionalAuthMiddleware(verifier TokenVerifier, users UserFinder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := resolveUser(r, verifier, users)
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// resolveUser はリクエストのベアラートークンからユーザーを解決する。
// 解決できない場合はnilを返す。
func resolveUser(r *http.Request, verifier TokenVerifier, users UserFinder) *model.User {
	// 1. AuthorizationヘッダーからBearerトークンを抽出
	// スキーム名は大文字小文字を区別しない（"bearer"も受け付ける）
	header := r.Header.Get("Authorization")
	scheme, tokenStr, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
		return nil
	}

	// 2. トークンを検証しsubjectを取得
	subject, err := verifier.Verify(tokenStr)
	if err != nil {
		return nil
	}

	userID, err := strconv.ParseInt(subject, 10, 64)
	if err != nil {
		return nil
	}

	// 3. subjectが現存するユーザーを指すことを確認
	user, err := users.FindByID(r.Context(), userID)
	if err != nil || user == nil {
		return nil
	}

	return user
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("user not found in context")
	}
	return user, nil
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (int64, error) {
	user, err := UserFromContext(ctx)
	if err != nil {
		return 0, err
	}
	return user.ID, nil
}

// ContextWithUser はコンテキストにユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
