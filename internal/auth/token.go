package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken はトークンの検証失敗を表す。
// 署名不一致、ペイロード不正、subject欠落、期限切れのいずれの場合も
// 呼び出し側には区別せずこのエラーを返す。
var ErrInvalidToken = errors.New("invalid token")

// TokenService は署名付き有効期限付きベアラートークンを発行・検証する。
// トークンは永続化されず、発行後の失効手段は持たない。
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time // テストで差し替え可能な時刻源
}

// NewTokenService はTokenServiceを生成する。
// ttlはIssueで使用するデフォルトの有効期間。
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Issue はデフォルトTTLでトークンを発行する。
func (s *TokenService) Issue(subject string) (string, error) {
	return s.IssueWithTTL(subject, s.ttl)
}

// IssueWithTTL は指定TTLでsubject（ユーザーID）を埋め込んだ
// HS256署名付きトークンを発行する。
func (s *TokenService) IssueWithTTL(subject string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify はトークンを検証し、subject（ユーザーID）を返す。
// 署名不一致、形式不正、subject欠落、期限切れの場合はErrInvalidTokenを返す。
// 回復可能なエラーのみを返し、panicしない。
func (s *TokenService) Verify(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenStr, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", ErrInvalidToken
	}

	if claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
