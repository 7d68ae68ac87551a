// Package auth はパスワードハッシュ、トークン発行、登録・ログインを提供する。
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2idのパラメータ（OWASP推奨値）。
const (
	argon2Time    = 1         // 反復回数
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // 並列度
	argon2SaltLen = 16        // ソルト長（バイト）
	argon2KeyLen  = 32        // 出力長（バイト）
)

// PasswordHasher はパスワードのハッシュ化と検証のインターフェース。
type PasswordHasher interface {
	// Hash はパスワードのargon2idハッシュをPHC文字列形式で返す。
	// 入力長の制限はなく、同一入力でもソルトにより毎回異なる出力を返す。
	Hash(password string) (string, error)

	// Verify はパスワードがハッシュに一致するかを返す。
	// ハッシュが不正な形式の場合はエラーにせずfalseを返す。
	Verify(password, encodedHash string) bool
}

// Argon2idHasher はargon2idによるPasswordHasherの実装。
type Argon2idHasher struct{}

// NewArgon2idHasher はArgon2idHasherを生成する。
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash はパスワードのargon2idハッシュをPHC文字列形式で返す。
func (h *Argon2idHasher) Hash(password string) (string, error) {
	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	// PHC文字列形式: $argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)

	return encoded, nil
}

// Verify はパスワードがハッシュに一致するかを返す。
// ハッシュのパースに失敗した場合はfalseを返す。
func (h *Argon2idHasher) Verify(password, encodedHash string) bool {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return false
	}

	if parts[1] != "argon2id" {
		return false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return false
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false
	}

	// uint8への暗黙の切り捨てを防ぐ
	if threads > 255 {
		return false
	}

	keyLen := len(expectedHash)
	if keyLen <= 0 || keyLen > 1<<30 {
		return false
	}

	computedHash := argon2.IDKey([]byte(password), salt, time, memory, uint8(threads), uint32(keyLen))

	// タイミング攻撃を避けるため定数時間比較を使用する
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1
}

// compile-time interface check
var _ PasswordHasher = (*Argon2idHasher)(nil)
